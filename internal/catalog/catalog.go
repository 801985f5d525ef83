package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"reelforge/internal/services"
)

// Codec identifies a supported video codec.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecH265 Codec = "h265"
	CodecVP9  Codec = "vp9"
	CodecAV1  Codec = "av1"
)

// Tier is a resolution bucket.
type Tier string

const (
	TierSD  Tier = "sd"
	TierHD  Tier = "hd"
	TierFHD Tier = "fhd"
	Tier4K  Tier = "4k"
)

var (
	codecs = []Codec{CodecH264, CodecH265, CodecVP9, CodecAV1}
	tiers  = []Tier{TierSD, TierHD, TierFHD, Tier4K}
)

// Entry is one row of the encoding table.
type Entry struct {
	CRF           int
	Preset        string
	Profile       string
	Level         string
	TargetBitrate string
}

type codecInfo struct {
	encoder    string
	audio      string
	presetFlag string
	entries    map[Tier]Entry
}

// The table is authoritative. CRF decreases as the tier rises; lower tiers use
// faster presets.
var table = map[Codec]codecInfo{
	CodecH264: {
		encoder:    "libx264",
		audio:      "aac",
		presetFlag: "-preset",
		entries: map[Tier]Entry{
			TierSD:  {CRF: 26, Preset: "veryfast", Profile: "high", Level: "3.1", TargetBitrate: "1500k"},
			TierHD:  {CRF: 24, Preset: "fast", Profile: "high", Level: "4.0", TargetBitrate: "3000k"},
			TierFHD: {CRF: 22, Preset: "medium", Profile: "high", Level: "4.1", TargetBitrate: "6000k"},
			Tier4K:  {CRF: 20, Preset: "slow", Profile: "high", Level: "5.1", TargetBitrate: "16000k"},
		},
	},
	CodecH265: {
		encoder:    "libx265",
		audio:      "aac",
		presetFlag: "-preset",
		entries: map[Tier]Entry{
			TierSD:  {CRF: 28, Preset: "veryfast", Profile: "main", TargetBitrate: "900k"},
			TierHD:  {CRF: 26, Preset: "fast", Profile: "main", TargetBitrate: "1800k"},
			TierFHD: {CRF: 24, Preset: "medium", Profile: "main", TargetBitrate: "3600k"},
			Tier4K:  {CRF: 22, Preset: "slow", Profile: "main", TargetBitrate: "10000k"},
		},
	},
	CodecVP9: {
		encoder:    "libvpx-vp9",
		audio:      "libopus",
		presetFlag: "-cpu-used",
		entries: map[Tier]Entry{
			TierSD:  {CRF: 36, Preset: "4", TargetBitrate: "1000k"},
			TierHD:  {CRF: 34, Preset: "3", TargetBitrate: "2000k"},
			TierFHD: {CRF: 32, Preset: "2", TargetBitrate: "4000k"},
			Tier4K:  {CRF: 30, Preset: "1", TargetBitrate: "12000k"},
		},
	},
	CodecAV1: {
		encoder:    "libsvtav1",
		audio:      "libopus",
		presetFlag: "-preset",
		entries: map[Tier]Entry{
			TierSD:  {CRF: 38, Preset: "10", TargetBitrate: "700k"},
			TierHD:  {CRF: 35, Preset: "8", TargetBitrate: "1400k"},
			TierFHD: {CRF: 32, Preset: "6", TargetBitrate: "3000k"},
			Tier4K:  {CRF: 30, Preset: "4", TargetBitrate: "8000k"},
		},
	},
}

var containers = map[string][]Codec{
	"mp4":  {CodecH264, CodecH265, CodecAV1},
	"mov":  {CodecH264, CodecH265},
	"mkv":  {CodecH264, CodecH265, CodecVP9, CodecAV1},
	"webm": {CodecVP9, CodecAV1},
}

// Codecs returns the supported codecs in table order.
func Codecs() []Codec { return append([]Codec(nil), codecs...) }

// Tiers returns the resolution tiers from lowest to highest.
func Tiers() []Tier { return append([]Tier(nil), tiers...) }

// ParseCodec normalizes a codec name, accepting "hevc" for h265.
func ParseCodec(value string) (Codec, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "hevc" {
		normalized = string(CodecH265)
	}
	if _, ok := table[Codec(normalized)]; !ok {
		return "", fmt.Errorf("%w: unsupported codec %q", services.ErrValidation, value)
	}
	return Codec(normalized), nil
}

// ParseTier normalizes a tier name.
func ParseTier(value string) (Tier, error) {
	normalized := Tier(strings.ToLower(strings.TrimSpace(value)))
	for _, tier := range tiers {
		if tier == normalized {
			return tier, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported tier %q", services.ErrValidation, value)
}

// Lookup returns the table entry for codec and tier.
func Lookup(codec Codec, tier Tier) (Entry, error) {
	info, ok := table[codec]
	if !ok {
		return Entry{}, fmt.Errorf("%w: unsupported codec %q", services.ErrValidation, codec)
	}
	entry, ok := info.entries[tier]
	if !ok {
		return Entry{}, fmt.Errorf("%w: unsupported tier %q", services.ErrValidation, tier)
	}
	return entry, nil
}

// EncoderName maps a codec onto its encoder library.
func EncoderName(codec Codec) (string, error) {
	info, ok := table[codec]
	if !ok {
		return "", fmt.Errorf("%w: unsupported codec %q", services.ErrValidation, codec)
	}
	return info.encoder, nil
}

// AudioEncoder returns the audio encoder paired with codec.
func AudioEncoder(codec Codec) string {
	if info, ok := table[codec]; ok {
		return info.audio
	}
	return "aac"
}

// PresetFlag returns the encoder flag that carries the speed preset.
func PresetFlag(codec Codec) string {
	if info, ok := table[codec]; ok {
		return info.presetFlag
	}
	return "-preset"
}

// ContainerSupports reports whether format can carry codec.
func ContainerSupports(format string, codec Codec) bool {
	for _, c := range containers[strings.ToLower(strings.TrimSpace(format))] {
		if c == codec {
			return true
		}
	}
	return false
}

// Containers lists the supported container formats.
func Containers() []string {
	return []string{"mp4", "mov", "mkv", "webm"}
}

// TierForResolution maps output dimensions onto a tier using the shorter side.
func TierForResolution(width, height int) Tier {
	short := width
	if height < short {
		short = height
	}
	switch {
	case short >= 2160:
		return Tier4K
	case short >= 1080:
		return TierFHD
	case short >= 720:
		return TierHD
	default:
		return TierSD
	}
}

var namedResolutions = map[string][2]int{
	"480p":  {854, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
	"1440p": {2560, 1440},
	"2160p": {3840, 2160},
	"4k":    {3840, 2160},
}

// ParseResolution accepts named resolutions ("720p", "4k") or WIDTHxHEIGHT.
// Dimensions must be positive and even, as required by 4:2:0 encoders.
func ParseResolution(value string) (int, int, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if dims, ok := namedResolutions[normalized]; ok {
		return dims[0], dims[1], nil
	}
	w, h, found := strings.Cut(normalized, "x")
	if !found {
		return 0, 0, fmt.Errorf("%w: unsupported resolution %q", services.ErrValidation, value)
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return 0, 0, fmt.Errorf("%w: invalid resolution %q", services.ErrValidation, value)
	}
	return width, height, nil
}

var bitratePattern = regexp.MustCompile(`^[1-9][0-9]*(\.[0-9]+)?[kKmM]?$`)

// ValidBitrate reports whether value is an encoder bitrate such as "2500k" or "8M".
func ValidBitrate(value string) bool {
	return bitratePattern.MatchString(strings.TrimSpace(value))
}
