package pipeline

import (
	"fmt"
	"strings"

	"reelforge/internal/catalog"
	"reelforge/internal/composition"
	"reelforge/internal/jobs"
	"reelforge/internal/services"
)

const (
	defaultFPS = 30
	maxFPS     = 120
)

// ResolveOutput turns job settings into the output description and encoder
// parameters. The catalog tier follows the output resolution; the quality
// tier only decides two-pass encoding (and cost).
func ResolveOutput(settings jobs.Settings) (composition.OutputSpec, catalog.Params, error) {
	width, height, err := catalog.ParseResolution(settings.Resolution)
	if err != nil {
		return composition.OutputSpec{}, catalog.Params{}, err
	}
	codec, err := catalog.ParseCodec(settings.Codec)
	if err != nil {
		return composition.OutputSpec{}, catalog.Params{}, err
	}
	container := strings.ToLower(strings.TrimSpace(settings.Format))
	if !catalog.ContainerSupports(container, codec) {
		return composition.OutputSpec{}, catalog.Params{}, fmt.Errorf("%w: format %q cannot carry %s", services.ErrValidation, settings.Format, codec)
	}
	fps := settings.FPS
	if fps == 0 {
		fps = defaultFPS
	}
	if fps < 0 || fps > maxFPS {
		return composition.OutputSpec{}, catalog.Params{}, fmt.Errorf("%w: fps %d outside 1-%d", services.ErrValidation, settings.FPS, maxFPS)
	}
	if !settings.QualityTier.Valid() {
		return composition.OutputSpec{}, catalog.Params{}, fmt.Errorf("%w: unsupported quality tier %q", services.ErrValidation, settings.QualityTier)
	}
	tier := catalog.TierForResolution(width, height)
	twoPass := settings.QualityTier.TwoPass()

	params, err := catalog.Resolve(catalog.Request{
		Codec:   codec,
		Tier:    tier,
		Bitrate: settings.Bitrate,
		Preset:  settings.Preset,
		TwoPass: twoPass,
	})
	if err != nil {
		return composition.OutputSpec{}, catalog.Params{}, err
	}
	out := composition.OutputSpec{
		Width:     width,
		Height:    height,
		FPS:       fps,
		Container: container,
		Codec:     codec,
		Tier:      tier,
		Bitrate:   params.Bitrate,
		Profile:   params.Profile,
		Level:     params.Level,
		Preset:    params.Preset,
		TwoPass:   twoPass,
	}
	return out, params, nil
}
