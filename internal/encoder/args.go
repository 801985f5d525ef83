package encoder

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"reelforge/internal/catalog"
	"reelforge/internal/composition"
)

// Request is everything needed to encode one composition.
type Request struct {
	Inputs      []composition.MediaInput
	FilterGraph string
	Output      composition.OutputSpec
	Params      catalog.Params
	OutputPath  string
	// Duration is the estimated output length in seconds, used for progress.
	Duration float64
	// PassLogPrefix is where two-pass statistics are written.
	PassLogPrefix string
}

// Passes reports how many encoder runs the request needs.
func (r Request) Passes() int {
	if r.Output.TwoPass && r.Params.RateControl == catalog.RateBitrate {
		return 2
	}
	return 1
}

const audioBitrate = "192k"

// BuildArgs produces the argument list for pass (1-based) of req. Single-pass
// requests use pass 0.
func BuildArgs(req Request, pass int) ([]string, error) {
	if strings.TrimSpace(req.OutputPath) == "" {
		return nil, fmt.Errorf("output path required")
	}
	if strings.TrimSpace(req.FilterGraph) == "" {
		return nil, fmt.Errorf("filter graph required")
	}
	if req.Params.Encoder == "" {
		return nil, fmt.Errorf("encoder parameters required")
	}

	args := baseArgs()
	for _, in := range req.Inputs {
		args = append(args, inputArgs(in, req.Duration)...)
	}
	// Every labelled graph output must be mapped, on the analysis pass too,
	// or ffmpeg rejects the graph as having an unconnected output.
	args = append(args,
		"-filter_complex", req.FilterGraph,
		"-map", "["+composition.LabelFinalVideo+"]",
		"-map", "["+composition.LabelFinalAudio+"]",
	)
	args = append(args, videoArgs(req.Output, req.Params)...)
	if pass > 0 {
		args = append(args, passArgs(req.Params.Encoder, pass, req.PassLogPrefix)...)
	}
	if pass == 1 {
		// The null muxer takes raw PCM; the audio is discarded.
		return append(args, "-c:a", "pcm_s16le", "-f", "null", os.DevNull), nil
	}
	args = append(args, "-c:a", req.Params.AudioEncoder, "-b:a", audioBitrate)
	args = append(args, containerArgs(req.Output.Container)...)
	return append(args, req.OutputPath), nil
}

// FilterRequest re-encodes a single input through a plain filter chain.
type FilterRequest struct {
	Input      string
	OutputPath string
	Chain      string
	Output     composition.OutputSpec
	Params     catalog.Params
	Duration   float64
}

// BuildFilterArgs produces the argument list for a single-input filter pass.
// Audio is copied untouched.
func BuildFilterArgs(req FilterRequest) ([]string, error) {
	if strings.TrimSpace(req.Input) == "" || strings.TrimSpace(req.OutputPath) == "" {
		return nil, fmt.Errorf("input and output paths required")
	}
	if strings.TrimSpace(req.Chain) == "" {
		return nil, fmt.Errorf("filter chain required")
	}
	if req.Params.Encoder == "" {
		return nil, fmt.Errorf("encoder parameters required")
	}
	args := baseArgs()
	args = append(args, "-i", req.Input, "-vf", req.Chain)
	args = append(args, videoArgs(req.Output, req.Params)...)
	args = append(args, "-c:a", "copy")
	args = append(args, containerArgs(req.Output.Container)...)
	return append(args, req.OutputPath), nil
}

// BuildThumbnailArgs extracts one frame at seconds into output.
func BuildThumbnailArgs(input, output string, at float64) []string {
	if at < 0 {
		at = 0
	}
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", formatSeconds(at),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		output,
	}
}

func baseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-y", "-progress", "pipe:1", "-nostats"}
}

func inputArgs(in composition.MediaInput, total float64) []string {
	var args []string
	switch in.Type {
	case composition.InputImage:
		args = append(args, "-loop", "1")
		if total > 0 {
			args = append(args, "-t", formatSeconds(total))
		}
	default:
		if in.Trim != nil {
			if in.Trim.Start > 0 {
				args = append(args, "-ss", formatSeconds(in.Trim.Start))
			}
			if in.Trim.End > 0 {
				args = append(args, "-to", formatSeconds(in.Trim.End))
			}
		}
	}
	return append(args, "-i", in.Source)
}

func videoArgs(out composition.OutputSpec, p catalog.Params) []string {
	args := []string{"-c:v", p.Encoder}
	switch p.RateControl {
	case catalog.RateBitrate:
		args = append(args, "-b:v", p.Bitrate)
	default:
		args = append(args, "-crf", strconv.Itoa(p.CRF))
		if p.Encoder == "libvpx-vp9" {
			// Constant quality mode for VP9 needs an unconstrained bitrate.
			args = append(args, "-b:v", "0")
		}
	}
	if p.Preset != "" && p.PresetFlag != "" {
		args = append(args, p.PresetFlag, p.Preset)
	}
	if p.Profile != "" {
		args = append(args, "-profile:v", p.Profile)
	}
	if p.Level != "" {
		args = append(args, "-level", p.Level)
	}
	pixFmt := out.PixelFormat
	if pixFmt == "" {
		pixFmt = "yuv420p"
	}
	args = append(args, "-pix_fmt", pixFmt)
	if out.Width > 0 && out.Height > 0 {
		args = append(args, "-s", fmt.Sprintf("%dx%d", out.Width, out.Height))
	}
	if out.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(out.FPS))
	}
	return args
}

func passArgs(encoder string, pass int, prefix string) []string {
	if prefix == "" {
		prefix = "reelforge-pass"
	}
	switch encoder {
	case "libx265":
		return []string{"-x265-params", fmt.Sprintf("pass=%d:stats=%s.log", pass, prefix)}
	default:
		return []string{"-pass", strconv.Itoa(pass), "-passlogfile", prefix}
	}
}

func containerArgs(container string) []string {
	switch strings.ToLower(container) {
	case "mp4", "mov":
		return []string{"-movflags", "+faststart"}
	default:
		return nil
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
