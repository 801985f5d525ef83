package composition

import (
	"fmt"
	"math"
	"strings"

	"reelforge/internal/services"
)

// Effect is a closed set of video effects applied in array order.
type Effect interface {
	effectKind() string
}

// TransitionKind names a supported transition.
type TransitionKind string

const (
	FadeIn  TransitionKind = "fade_in"
	FadeOut TransitionKind = "fade_out"
)

// Transition fades the whole composition in or out.
type Transition struct {
	Kind     TransitionKind
	Duration float64
}

// Overlay composites an image input over the video. Source indexes the plan
// inputs and must reference an image. An empty BlendMode means plain alpha
// overlay.
type Overlay struct {
	Source    int
	X         string
	Y         string
	Opacity   float64
	BlendMode string
}

// WatermarkPosition anchors watermark text.
type WatermarkPosition string

const (
	TopLeft     WatermarkPosition = "top_left"
	TopRight    WatermarkPosition = "top_right"
	BottomLeft  WatermarkPosition = "bottom_left"
	BottomRight WatermarkPosition = "bottom_right"
	Center      WatermarkPosition = "center"
)

// WatermarkStyle controls font rendering.
type WatermarkStyle struct {
	FontSize  int
	FontColor string
}

// Watermark draws text on every frame.
type Watermark struct {
	Text     string
	Position WatermarkPosition
	Opacity  float64
	Style    WatermarkStyle
}

// ColorCorrection adjusts tone. Zero Contrast, Saturation and Gamma mean
// unchanged (1.0).
type ColorCorrection struct {
	Brightness float64
	Contrast   float64
	Saturation float64
	Gamma      float64
	AutoLevels bool
}

// NoiseReduction denoises with strength in (0, 1]. Temporal also smooths
// across frames.
type NoiseReduction struct {
	Strength float64
	Temporal bool
}

// RawFilter is inserted verbatim. It must be a single filter chain without
// stream labels.
type RawFilter struct {
	Expression string
}

func (Transition) effectKind() string      { return "transition" }
func (Overlay) effectKind() string         { return "overlay" }
func (Watermark) effectKind() string       { return "watermark" }
func (ColorCorrection) effectKind() string { return "color_correction" }
func (NoiseReduction) effectKind() string  { return "noise_reduction" }
func (RawFilter) effectKind() string       { return "raw_filter" }

// KindOf returns the effect's tag.
func KindOf(e Effect) string {
	if e == nil {
		return ""
	}
	return e.effectKind()
}

var blendModes = map[string]struct{}{
	"normal": {}, "multiply": {}, "screen": {}, "overlay": {}, "darken": {},
	"lighten": {}, "addition": {}, "difference": {}, "softlight": {}, "hardlight": {},
}

func invalid(index int, e Effect, format string, args ...any) error {
	return fmt.Errorf("%w: effect %d (%s): %s", services.ErrValidation, index, KindOf(e), fmt.Sprintf(format, args...))
}

func validOpacity(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func watermarkCoordinates(pos WatermarkPosition) (string, string, error) {
	const margin = "24"
	switch pos {
	case TopLeft:
		return margin, margin, nil
	case TopRight:
		return "w-tw-" + margin, margin, nil
	case BottomLeft:
		return margin, "h-th-" + margin, nil
	case "", BottomRight:
		return "w-tw-" + margin, "h-th-" + margin, nil
	case Center:
		return "(w-tw)/2", "(h-th)/2", nil
	default:
		return "", "", fmt.Errorf("unsupported position %q", pos)
	}
}

func formatNumber(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
