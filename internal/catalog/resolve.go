package catalog

import (
	"fmt"
	"strings"

	"reelforge/internal/services"
)

// RateControl selects how the encoder spends bits.
type RateControl string

const (
	RateCRF     RateControl = "crf"
	RateBitrate RateControl = "bitrate"
)

// Request describes what the caller wants encoded. Bitrate and Preset are
// optional overrides.
type Request struct {
	Codec   Codec
	Tier    Tier
	Bitrate string
	Preset  string
	TwoPass bool
}

// Params are the concrete encoder parameters for a Request.
type Params struct {
	Encoder      string
	AudioEncoder string
	RateControl  RateControl
	CRF          int
	Bitrate      string
	PresetFlag   string
	Preset       string
	Profile      string
	Level        string
}

// Resolve turns a request into encoder parameters. An explicit bitrate always
// wins over CRF. Two-pass encoding needs a bitrate target, so it falls back to
// the tier's target bitrate when none is given. The result depends only on the
// request.
func Resolve(req Request) (Params, error) {
	entry, err := Lookup(req.Codec, req.Tier)
	if err != nil {
		return Params{}, err
	}
	info := table[req.Codec]
	params := Params{
		Encoder:      info.encoder,
		AudioEncoder: info.audio,
		RateControl:  RateCRF,
		CRF:          entry.CRF,
		PresetFlag:   info.presetFlag,
		Preset:       entry.Preset,
		Profile:      entry.Profile,
		Level:        entry.Level,
	}
	if preset := strings.TrimSpace(req.Preset); preset != "" {
		params.Preset = preset
	}
	bitrate := strings.TrimSpace(req.Bitrate)
	if bitrate != "" && !ValidBitrate(bitrate) {
		return Params{}, fmt.Errorf("%w: invalid bitrate %q", services.ErrValidation, req.Bitrate)
	}
	if bitrate == "" && req.TwoPass {
		bitrate = entry.TargetBitrate
	}
	if bitrate != "" {
		params.RateControl = RateBitrate
		params.Bitrate = bitrate
		params.CRF = 0
	}
	return params, nil
}
