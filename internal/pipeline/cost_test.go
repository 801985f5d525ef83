package pipeline_test

import (
	"testing"
	"time"

	"reelforge/internal/jobs"
	"reelforge/internal/pipeline"
)

func TestComputeCostStandardScenario(t *testing.T) {
	got := pipeline.ComputeCost(pipeline.CostInputs{
		SceneDurations: []float64{5, 5, 5},
		Tier:           jobs.QualityStandard,
		WallClock:      100 * time.Second,
		StorageCost:    0.01,
	})
	want := jobs.CostBreakdown{TTSCost: 0.3, AvatarCost: 0.75, RenderingCost: 0.3, StorageCost: 0.01, TotalCost: 1.36}
	if got != want {
		t.Fatalf("cost = %+v, want %+v", got, want)
	}
}

func TestComputeCostAppliesTierAndPostProcessing(t *testing.T) {
	in := pipeline.CostInputs{
		SceneDurations: []float64{10},
		Tier:           jobs.QualityPremium,
		PostProcessing: jobs.PostProcessing{FaceEnhancement: true, ColorCorrection: true, NoiseReduction: true},
		WallClock:      200 * time.Second,
	}
	got := pipeline.ComputeCost(in)
	if got.TTSCost != 0.36 {
		t.Fatalf("tts = %v, want 0.36", got.TTSCost)
	}
	if got.AvatarCost != 1.08 {
		t.Fatalf("avatar = %v, want 1.08", got.AvatarCost)
	}
	if got.RenderingCost != 1.3662 {
		t.Fatalf("rendering = %v, want 1.3662", got.RenderingCost)
	}
	if again := pipeline.ComputeCost(in); again != got {
		t.Fatalf("cost is not deterministic: %+v vs %+v", got, again)
	}
}

func TestComputeCostTierMultipliers(t *testing.T) {
	cases := map[jobs.QualityTier]float64{
		jobs.QualityDraft:    0.5,
		jobs.QualityStandard: 1.0,
		jobs.QualityHigh:     1.3,
		jobs.QualityPremium:  1.8,
		jobs.QualityUltra:    2.5,
	}
	for tier, multiplier := range cases {
		got := pipeline.ComputeCost(pipeline.CostInputs{SceneDurations: []float64{100}, Tier: tier})
		if want := 2 * multiplier; got.TTSCost != want {
			t.Fatalf("%s tts = %v, want %v", tier, got.TTSCost, want)
		}
	}
}
