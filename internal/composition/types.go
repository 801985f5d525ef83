package composition

import (
	"reelforge/internal/catalog"
)

// InputType classifies a media input.
type InputType string

const (
	InputVideo InputType = "video"
	InputAudio InputType = "audio"
	InputImage InputType = "image"
)

// TrimWindow selects [Start, End) seconds of an input. End of zero means
// until the end of the input.
type TrimWindow struct {
	Start float64
	End   float64
}

// MediaInput is one source handed to the encoder, in encoder input order.
type MediaInput struct {
	Type     InputType
	Source   string
	Trim     *TrimWindow
	Duration float64
}

// EffectiveDuration is the input duration after trimming.
func (m MediaInput) EffectiveDuration() float64 {
	if m.Trim == nil {
		return m.Duration
	}
	end := m.Trim.End
	if end <= 0 || (m.Duration > 0 && end > m.Duration) {
		end = m.Duration
	}
	if d := end - m.Trim.Start; d > 0 {
		return d
	}
	return 0
}

// OutputSpec describes the encoded artifact.
type OutputSpec struct {
	Width       int
	Height      int
	FPS         int
	Container   string
	Codec       catalog.Codec
	Tier        catalog.Tier
	Bitrate     string
	PixelFormat string
	Profile     string
	Level       string
	Preset      string
	TwoPass     bool
}

// Plan is the complete, immutable description of one composition.
type Plan struct {
	Inputs  []MediaInput
	Effects []Effect
	Output  OutputSpec
}

// VideoDuration sums the effective duration of every video input.
func (p Plan) VideoDuration() float64 {
	total := 0.0
	for _, in := range p.Inputs {
		if in.Type == InputVideo {
			total += in.EffectiveDuration()
		}
	}
	return total
}

// Arg is one filter option. An empty Key makes it positional.
type Arg struct {
	Key   string
	Value string
}

// Filter is one named filter with its options, or a verbatim expression when
// Raw is set.
type Filter struct {
	Name string
	Args []Arg
	Raw  string
}

// Operation consumes labelled streams through a chain of filters and produces
// one labelled stream.
type Operation struct {
	Inputs  []string
	Filters []Filter
	Output  string
}

// Graph is the ordered operation list produced by Build.
type Graph struct {
	Operations []Operation
}

// Outputs lists every label produced by the graph in order.
func (g Graph) Outputs() []string {
	labels := make([]string, 0, len(g.Operations))
	for _, op := range g.Operations {
		labels = append(labels, op.Output)
	}
	return labels
}

// Stream labels with fixed meaning.
const (
	LabelVideoRaw   = "video_raw"
	LabelAudioRaw   = "audio_raw"
	LabelFinalVideo = "final_video"
	LabelFinalAudio = "final_audio"
)
