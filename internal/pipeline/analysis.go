package pipeline

import (
	"errors"
	"math"

	"reelforge/internal/jobs"
)

// bits per pixel at which the video score saturates
const referenceBPP = 0.1

type qualityInputs struct {
	FileSize        int64
	Duration        float64
	Width, Height   int
	FPS             int
	SceneDurations  []float64
	TargetDurations []*float64
	LipSync         []float64
}

// assessQuality derives informational scores (0-100) from what the pipeline
// already knows about the render. It never inspects the media itself.
func assessQuality(in qualityInputs) (jobs.QualityReport, error) {
	if in.FileSize <= 0 || in.Duration <= 0 {
		return jobs.QualityReport{}, errors.New("rendered video has no size or duration")
	}
	if in.Width <= 0 || in.Height <= 0 || in.FPS <= 0 {
		return jobs.QualityReport{}, errors.New("output geometry unknown")
	}

	bitsPerSecond := float64(in.FileSize) * 8 / in.Duration
	bpp := bitsPerSecond / float64(in.Width*in.Height*in.FPS)
	video := clampScore(bpp / referenceBPP * 100)

	audio := 100.0
	deviation, counted := 0.0, 0
	for i, target := range in.TargetDurations {
		if target == nil || *target <= 0 || i >= len(in.SceneDurations) {
			continue
		}
		deviation += math.Abs(in.SceneDurations[i]-*target) / *target
		counted++
	}
	if counted > 0 {
		audio = clampScore(100 * (1 - deviation/float64(counted)))
	}

	lipSync := 0.0
	for _, v := range in.LipSync {
		lipSync += v
	}
	if len(in.LipSync) > 0 {
		lipSync = clampScore(lipSync / float64(len(in.LipSync)) * 100)
	}

	return jobs.QualityReport{
		VideoScore:   round2(video),
		AudioScore:   round2(audio),
		LipSyncScore: round2(lipSync),
	}, nil
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
