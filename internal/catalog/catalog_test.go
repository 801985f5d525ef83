package catalog_test

import (
	"errors"
	"reflect"
	"testing"

	"reelforge/internal/catalog"
	"reelforge/internal/services"
)

func TestCRFDecreasesAsTierRises(t *testing.T) {
	for _, codec := range catalog.Codecs() {
		prev := 1 << 30
		for _, tier := range catalog.Tiers() {
			entry, err := catalog.Lookup(codec, tier)
			if err != nil {
				t.Fatalf("Lookup(%s, %s): %v", codec, tier, err)
			}
			if entry.CRF >= prev {
				t.Fatalf("%s CRF not decreasing at %s: %d >= %d", codec, tier, entry.CRF, prev)
			}
			prev = entry.CRF
		}
	}
	sd, _ := catalog.Lookup(catalog.CodecH264, catalog.TierSD)
	uhd, _ := catalog.Lookup(catalog.CodecH264, catalog.Tier4K)
	if sd.CRF != 26 || uhd.CRF != 20 {
		t.Fatalf("unexpected h264 endpoints: sd=%d 4k=%d", sd.CRF, uhd.CRF)
	}
}

func TestPresetSpeedFollowsTier(t *testing.T) {
	sd, _ := catalog.Lookup(catalog.CodecH264, catalog.TierSD)
	uhd, _ := catalog.Lookup(catalog.CodecH264, catalog.Tier4K)
	if sd.Preset != "veryfast" || uhd.Preset != "slow" {
		t.Fatalf("unexpected presets: %q %q", sd.Preset, uhd.Preset)
	}
}

func TestResolveBitrateWinsOverCRF(t *testing.T) {
	params, err := catalog.Resolve(catalog.Request{Codec: catalog.CodecH264, Tier: catalog.TierFHD, Bitrate: "4500k"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if params.RateControl != catalog.RateBitrate || params.Bitrate != "4500k" || params.CRF != 0 {
		t.Fatalf("expected bitrate rate control, got %+v", params)
	}

	crf, err := catalog.Resolve(catalog.Request{Codec: catalog.CodecH264, Tier: catalog.TierFHD})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if crf.RateControl != catalog.RateCRF || crf.CRF != 22 || crf.Bitrate != "" {
		t.Fatalf("expected crf rate control, got %+v", crf)
	}
	if crf.Encoder != "libx264" || crf.Profile != "high" || crf.Level != "4.1" || crf.Preset != "medium" {
		t.Fatalf("unexpected params: %+v", crf)
	}
}

func TestResolveExplicitPresetAndTwoPass(t *testing.T) {
	params, err := catalog.Resolve(catalog.Request{Codec: catalog.CodecVP9, Tier: catalog.TierHD, Preset: "5", TwoPass: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if params.Preset != "5" || params.PresetFlag != "-cpu-used" {
		t.Fatalf("explicit preset ignored: %+v", params)
	}
	if params.RateControl != catalog.RateBitrate || params.Bitrate != "2000k" {
		t.Fatalf("two-pass should use the tier target bitrate: %+v", params)
	}
	if params.AudioEncoder != "libopus" {
		t.Fatalf("unexpected audio encoder %q", params.AudioEncoder)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	req := catalog.Request{Codec: catalog.CodecAV1, Tier: catalog.Tier4K, Bitrate: "8M"}
	first, err := catalog.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := 0; i < 10; i++ {
		next, _ := catalog.Resolve(req)
		if !reflect.DeepEqual(first, next) {
			t.Fatalf("non-deterministic result: %+v vs %+v", first, next)
		}
	}
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	cases := []catalog.Request{
		{Codec: "mpeg2", Tier: catalog.TierHD},
		{Codec: catalog.CodecH264, Tier: "8k"},
		{Codec: catalog.CodecH264, Tier: catalog.TierHD, Bitrate: "fast"},
		{Codec: catalog.CodecH264, Tier: catalog.TierHD, Bitrate: "0k"},
	}
	for _, req := range cases {
		if _, err := catalog.Resolve(req); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestEncoderName(t *testing.T) {
	want := map[catalog.Codec]string{
		catalog.CodecH264: "libx264",
		catalog.CodecH265: "libx265",
		catalog.CodecVP9:  "libvpx-vp9",
		catalog.CodecAV1:  "libsvtav1",
	}
	for codec, encoder := range want {
		got, err := catalog.EncoderName(codec)
		if err != nil || got != encoder {
			t.Fatalf("EncoderName(%s) = %q, %v", codec, got, err)
		}
	}
	if codec, err := catalog.ParseCodec("HEVC"); err != nil || codec != catalog.CodecH265 {
		t.Fatalf("ParseCodec(HEVC) = %q, %v", codec, err)
	}
}

func TestTierForResolution(t *testing.T) {
	cases := []struct {
		w, h int
		want catalog.Tier
	}{
		{854, 480, catalog.TierSD},
		{1280, 720, catalog.TierHD},
		{1920, 1080, catalog.TierFHD},
		{1080, 1920, catalog.TierFHD},
		{2560, 1440, catalog.TierFHD},
		{3840, 2160, catalog.Tier4K},
	}
	for _, tc := range cases {
		if got := catalog.TierForResolution(tc.w, tc.h); got != tc.want {
			t.Fatalf("TierForResolution(%d, %d) = %s, want %s", tc.w, tc.h, got, tc.want)
		}
	}
}

func TestParseResolution(t *testing.T) {
	if w, h, err := catalog.ParseResolution("1080p"); err != nil || w != 1920 || h != 1080 {
		t.Fatalf("ParseResolution(1080p) = %d %d %v", w, h, err)
	}
	if w, h, err := catalog.ParseResolution("1080x1920"); err != nil || w != 1080 || h != 1920 {
		t.Fatalf("ParseResolution(1080x1920) = %d %d %v", w, h, err)
	}
	for _, bad := range []string{"", "huge", "1921x1080", "0x0", "axb"} {
		if _, _, err := catalog.ParseResolution(bad); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", bad, err)
		}
	}
}

func TestContainerSupports(t *testing.T) {
	if !catalog.ContainerSupports("mp4", catalog.CodecH264) || !catalog.ContainerSupports("WEBM", catalog.CodecVP9) {
		t.Fatal("expected supported combinations")
	}
	if catalog.ContainerSupports("webm", catalog.CodecH264) || catalog.ContainerSupports("avi", catalog.CodecH264) {
		t.Fatal("expected unsupported combinations to be rejected")
	}
}
