package pipeline_test

import (
	"errors"
	"testing"

	"reelforge/internal/catalog"
	"reelforge/internal/jobs"
	"reelforge/internal/pipeline"
	"reelforge/internal/services"
)

func TestResolveOutputStandardUsesCRF(t *testing.T) {
	out, params, err := pipeline.ResolveOutput(jobs.Settings{
		Resolution:  "1080p",
		QualityTier: jobs.QualityStandard,
		Codec:       "h264",
		Format:      "mp4",
	})
	if err != nil {
		t.Fatalf("ResolveOutput: %v", err)
	}
	if out.Width != 1920 || out.Height != 1080 || out.FPS != 30 || out.Tier != catalog.TierFHD {
		t.Fatalf("unexpected output %+v", out)
	}
	if out.TwoPass || params.RateControl != catalog.RateCRF || params.Encoder != "libx264" {
		t.Fatalf("unexpected params %+v (two-pass %v)", params, out.TwoPass)
	}
}

func TestResolveOutputPremiumIsTwoPass(t *testing.T) {
	out, params, err := pipeline.ResolveOutput(jobs.Settings{
		Resolution:  "720p",
		QualityTier: jobs.QualityPremium,
		Codec:       "hevc",
		Format:      "mkv",
		FPS:         25,
	})
	if err != nil {
		t.Fatalf("ResolveOutput: %v", err)
	}
	if !out.TwoPass || params.RateControl != catalog.RateBitrate || params.Bitrate == "" {
		t.Fatalf("expected two-pass bitrate control, got %+v", params)
	}
	if out.Codec != catalog.CodecH265 || out.Tier != catalog.TierHD {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestResolveOutputRejectsInvalidSettings(t *testing.T) {
	base := jobs.Settings{Resolution: "720p", QualityTier: jobs.QualityStandard, Codec: "h264", Format: "mp4"}
	cases := map[string]func(*jobs.Settings){
		"codec":      func(s *jobs.Settings) { s.Codec = "mpeg2" },
		"container":  func(s *jobs.Settings) { s.Format = "webm" },
		"resolution": func(s *jobs.Settings) { s.Resolution = "721x480" },
		"tier":       func(s *jobs.Settings) { s.QualityTier = "cinema" },
		"fps":        func(s *jobs.Settings) { s.FPS = 500 },
		"bitrate":    func(s *jobs.Settings) { s.Bitrate = "fast" },
	}
	for name, mutate := range cases {
		settings := base
		mutate(&settings)
		if _, _, err := pipeline.ResolveOutput(settings); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}
