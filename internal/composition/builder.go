package composition

import (
	"fmt"
	"strings"

	"reelforge/internal/services"
)

// Build turns inputs and effects into an ordered filter graph. It does not
// touch the filesystem or spawn processes.
func Build(inputs []MediaInput, effects []Effect, output OutputSpec) (Graph, error) {
	if err := validateOutput(output); err != nil {
		return Graph{}, err
	}
	var videos, audios, images []int
	for i, in := range inputs {
		if strings.TrimSpace(in.Source) == "" {
			return Graph{}, fmt.Errorf("%w: input %d has no source", services.ErrValidation, i)
		}
		switch in.Type {
		case InputVideo:
			videos = append(videos, i)
		case InputAudio:
			audios = append(audios, i)
		case InputImage:
			images = append(images, i)
		default:
			return Graph{}, fmt.Errorf("%w: input %d has unsupported type %q", services.ErrValidation, i, in.Type)
		}
	}
	if len(videos) == 0 {
		return Graph{}, fmt.Errorf("%w: composition requires at least one video input", services.ErrValidation)
	}

	// Dedicated audio inputs replace the audio tracks carried by the videos.
	audioSources := audios
	if len(audioSources) == 0 {
		audioSources = videos
	}

	b := &graphBuilder{inputs: inputs}
	b.merge(streamLabels(videos, "v"), LabelVideoRaw, "concat", []Arg{{"n", fmt.Sprint(len(videos))}, {"v", "1"}, {"a", "0"}}, "null")
	b.merge(streamLabels(audioSources, "a"), LabelAudioRaw, "concat", []Arg{{"n", fmt.Sprint(len(audioSources))}, {"v", "0"}, {"a", "1"}}, "anull")

	current := LabelVideoRaw
	total := Plan{Inputs: inputs}.VideoDuration()
	for i, effect := range effects {
		next := fmt.Sprintf("video_%d", i)
		if err := b.apply(i, effect, current, next, total); err != nil {
			return Graph{}, err
		}
		current = next
	}

	b.alias(current, LabelFinalVideo, "null")
	b.alias(LabelAudioRaw, LabelFinalAudio, "anull")
	return Graph{Operations: b.ops}, nil
}

// BuildPlan is Build over a Plan.
func BuildPlan(plan Plan) (Graph, error) {
	return Build(plan.Inputs, plan.Effects, plan.Output)
}

type graphBuilder struct {
	inputs []MediaInput
	ops    []Operation
}

func streamLabels(indexes []int, kind string) []string {
	labels := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		labels = append(labels, fmt.Sprintf("%d:%s", idx, kind))
	}
	return labels
}

func (b *graphBuilder) merge(labels []string, output, concat string, args []Arg, passthrough string) {
	if len(labels) == 1 {
		b.alias(labels[0], output, passthrough)
		return
	}
	b.ops = append(b.ops, Operation{
		Inputs:  labels,
		Filters: []Filter{{Name: concat, Args: args}},
		Output:  output,
	})
}

func (b *graphBuilder) alias(input, output, passthrough string) {
	b.ops = append(b.ops, Operation{
		Inputs:  []string{input},
		Filters: []Filter{{Name: passthrough}},
		Output:  output,
	})
}

func (b *graphBuilder) single(input, output string, filters ...Filter) {
	b.ops = append(b.ops, Operation{Inputs: []string{input}, Filters: filters, Output: output})
}

func (b *graphBuilder) apply(index int, effect Effect, current, next string, total float64) error {
	switch e := effect.(type) {
	case Transition:
		f, err := transitionFilter(index, e, total)
		if err != nil {
			return err
		}
		b.single(current, next, f)
	case Overlay:
		return b.overlay(index, e, current, next)
	case Watermark:
		f, err := watermarkFilter(index, e)
		if err != nil {
			return err
		}
		b.single(current, next, f)
	case ColorCorrection:
		filters, err := colorFilters(index, e)
		if err != nil {
			return err
		}
		b.single(current, next, filters...)
	case NoiseReduction:
		f, err := denoiseFilter(index, e)
		if err != nil {
			return err
		}
		b.single(current, next, f)
	case RawFilter:
		expr := strings.TrimSpace(e.Expression)
		if expr == "" {
			return invalid(index, e, "expression is empty")
		}
		if strings.ContainsAny(expr, "[];") {
			return invalid(index, e, "expression must not contain stream labels or chain separators")
		}
		b.single(current, next, Filter{Raw: expr})
	case nil:
		return fmt.Errorf("%w: effect %d is nil", services.ErrValidation, index)
	default:
		return fmt.Errorf("%w: effect %d has unsupported type %T", services.ErrValidation, index, effect)
	}
	return nil
}

func (b *graphBuilder) overlay(index int, e Overlay, current, next string) error {
	if e.Source < 0 || e.Source >= len(b.inputs) {
		return invalid(index, e, "source %d out of range", e.Source)
	}
	if b.inputs[e.Source].Type != InputImage {
		return invalid(index, e, "source %d is %s, want image", e.Source, b.inputs[e.Source].Type)
	}
	if !validOpacity(e.Opacity) {
		return invalid(index, e, "opacity %v outside [0,1]", e.Opacity)
	}
	mode := strings.ToLower(strings.TrimSpace(e.BlendMode))
	if mode != "" {
		if _, ok := blendModes[mode]; !ok {
			return invalid(index, e, "unsupported blend mode %q", e.BlendMode)
		}
	}

	prepared := fmt.Sprintf("overlay_%d", index)
	b.single(fmt.Sprintf("%d:v", e.Source), prepared,
		Filter{Name: "format", Args: []Arg{{Value: "rgba"}}},
		Filter{Name: "colorchannelmixer", Args: []Arg{{"aa", formatNumber(e.Opacity)}}},
	)

	var f Filter
	if mode == "" || mode == "normal" {
		x, y := e.X, e.Y
		if strings.TrimSpace(x) == "" {
			x = "0"
		}
		if strings.TrimSpace(y) == "" {
			y = "0"
		}
		f = Filter{Name: "overlay", Args: []Arg{{"x", x}, {"y", y}, {"format", "auto"}}}
	} else {
		f = Filter{Name: "blend", Args: []Arg{{"all_mode", mode}, {"all_opacity", formatNumber(e.Opacity)}}}
	}
	b.ops = append(b.ops, Operation{Inputs: []string{current, prepared}, Filters: []Filter{f}, Output: next})
	return nil
}

func transitionFilter(index int, e Transition, total float64) (Filter, error) {
	if e.Duration <= 0 {
		return Filter{}, invalid(index, e, "duration must be positive")
	}
	switch e.Kind {
	case FadeIn:
		return Filter{Name: "fade", Args: []Arg{{"t", "in"}, {"st", "0"}, {"d", formatNumber(e.Duration)}}}, nil
	case FadeOut:
		if total <= 0 {
			return Filter{}, invalid(index, e, "fade out requires known input durations")
		}
		start := total - e.Duration
		if start < 0 {
			start = 0
		}
		return Filter{Name: "fade", Args: []Arg{{"t", "out"}, {"st", formatNumber(start)}, {"d", formatNumber(e.Duration)}}}, nil
	default:
		return Filter{}, invalid(index, e, "unsupported transition %q", e.Kind)
	}
}

func watermarkFilter(index int, e Watermark) (Filter, error) {
	if strings.TrimSpace(e.Text) == "" {
		return Filter{}, invalid(index, e, "text is empty")
	}
	if !validOpacity(e.Opacity) {
		return Filter{}, invalid(index, e, "opacity %v outside [0,1]", e.Opacity)
	}
	x, y, err := watermarkCoordinates(e.Position)
	if err != nil {
		return Filter{}, invalid(index, e, "%v", err)
	}
	size := e.Style.FontSize
	if size <= 0 {
		size = 32
	}
	color := strings.TrimSpace(e.Style.FontColor)
	if color == "" {
		color = "white"
	}
	opacity := e.Opacity
	if opacity == 0 {
		opacity = 1
	}
	return Filter{Name: "drawtext", Args: []Arg{
		{"text", e.Text},
		{"expansion", "none"},
		{"x", x},
		{"y", y},
		{"fontsize", fmt.Sprint(size)},
		{"fontcolor", color + "@" + formatNumber(opacity)},
	}}, nil
}

func colorFilters(index int, e ColorCorrection) ([]Filter, error) {
	contrast, saturation, gamma := orOne(e.Contrast), orOne(e.Saturation), orOne(e.Gamma)
	switch {
	case e.Brightness < -1 || e.Brightness > 1:
		return nil, invalid(index, e, "brightness %v outside [-1,1]", e.Brightness)
	case contrast < 0 || contrast > 3:
		return nil, invalid(index, e, "contrast %v outside [0,3]", e.Contrast)
	case saturation < 0 || saturation > 3:
		return nil, invalid(index, e, "saturation %v outside [0,3]", e.Saturation)
	case gamma < 0.1 || gamma > 10:
		return nil, invalid(index, e, "gamma %v outside [0.1,10]", e.Gamma)
	}
	filters := []Filter{{Name: "eq", Args: []Arg{
		{"brightness", formatNumber(e.Brightness)},
		{"contrast", formatNumber(contrast)},
		{"saturation", formatNumber(saturation)},
		{"gamma", formatNumber(gamma)},
	}}}
	if e.AutoLevels {
		filters = append(filters, Filter{Name: "normalize", Args: []Arg{{"smoothing", "24"}}})
	}
	return filters, nil
}

func denoiseFilter(index int, e NoiseReduction) (Filter, error) {
	if e.Strength <= 0 || e.Strength > 1 {
		return Filter{}, invalid(index, e, "strength %v outside (0,1]", e.Strength)
	}
	luma := e.Strength * 8
	chroma := luma * 0.75
	lumaTemporal, chromaTemporal := 0.0, 0.0
	if e.Temporal {
		lumaTemporal = luma * 1.5
		chromaTemporal = lumaTemporal * 0.75
	}
	return Filter{Name: "hqdn3d", Args: []Arg{
		{Value: formatNumber(luma)},
		{Value: formatNumber(chroma)},
		{Value: formatNumber(lumaTemporal)},
		{Value: formatNumber(chromaTemporal)},
	}}, nil
}

func validateOutput(out OutputSpec) error {
	if out.Width <= 0 || out.Height <= 0 {
		return fmt.Errorf("%w: output resolution %dx%d is invalid", services.ErrValidation, out.Width, out.Height)
	}
	if out.Width%2 != 0 || out.Height%2 != 0 {
		return fmt.Errorf("%w: output resolution %dx%d must be even", services.ErrValidation, out.Width, out.Height)
	}
	if out.FPS < 0 {
		return fmt.Errorf("%w: output fps %d is invalid", services.ErrValidation, out.FPS)
	}
	return nil
}

// Chain renders single-stream effects as a plain filter chain for a
// one-input pass. Overlays need a second input and are rejected.
func Chain(effects []Effect, duration float64) (string, error) {
	var filters []Filter
	for i, effect := range effects {
		switch e := effect.(type) {
		case Transition:
			f, err := transitionFilter(i, e, duration)
			if err != nil {
				return "", err
			}
			filters = append(filters, f)
		case Watermark:
			f, err := watermarkFilter(i, e)
			if err != nil {
				return "", err
			}
			filters = append(filters, f)
		case ColorCorrection:
			fs, err := colorFilters(i, e)
			if err != nil {
				return "", err
			}
			filters = append(filters, fs...)
		case NoiseReduction:
			f, err := denoiseFilter(i, e)
			if err != nil {
				return "", err
			}
			filters = append(filters, f)
		case RawFilter:
			expr := strings.TrimSpace(e.Expression)
			if expr == "" || strings.ContainsAny(expr, "[];") {
				return "", invalid(i, e, "expression must be a non-empty single chain")
			}
			filters = append(filters, Filter{Raw: expr})
		default:
			return "", fmt.Errorf("%w: effect %d (%s) cannot run as a single-input chain", services.ErrValidation, i, KindOf(effect))
		}
	}
	if len(filters) == 0 {
		return "", fmt.Errorf("%w: no effects to apply", services.ErrValidation)
	}
	return SerializeChain(filters), nil
}
