package pipeline

import (
	"math"
	"time"

	"reelforge/internal/jobs"
)

const (
	ttsRatePerSecond    = 0.02
	avatarRatePerSecond = 0.05
	renderRatePerSecond = 0.003

	faceEnhancementFactor = 1.2
	colorCorrectionFactor = 1.1
	noiseReductionFactor  = 1.15

	// DefaultStorageCost is the flat per-job storage charge.
	DefaultStorageCost = 0.01
)

// CostInputs is everything the cost model depends on.
type CostInputs struct {
	SceneDurations []float64
	Tier           jobs.QualityTier
	PostProcessing jobs.PostProcessing
	WallClock      time.Duration
	StorageCost    float64
}

// ComputeCost prices a completed job. Identical inputs always produce
// identical breakdowns; every value is rounded to four decimals.
func ComputeCost(in CostInputs) jobs.CostBreakdown {
	total := 0.0
	for _, d := range in.SceneDurations {
		if d > 0 {
			total += d
		}
	}
	multiplier := in.Tier.Multiplier()

	tts := total * ttsRatePerSecond * multiplier
	avatar := total * avatarRatePerSecond * multiplier
	render := in.WallClock.Seconds() * renderRatePerSecond * multiplier
	if in.PostProcessing.FaceEnhancement {
		avatar *= faceEnhancementFactor
	}
	if in.PostProcessing.ColorCorrection {
		render *= colorCorrectionFactor
	}
	if in.PostProcessing.NoiseReduction {
		render *= noiseReductionFactor
	}
	storage := math.Max(in.StorageCost, 0)

	return jobs.CostBreakdown{
		TTSCost:       round4(tts),
		AvatarCost:    round4(avatar),
		RenderingCost: round4(render),
		StorageCost:   round4(storage),
		TotalCost:     round4(tts + avatar + render + storage),
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
