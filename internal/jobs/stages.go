package jobs

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage names one phase of job processing.
type Stage string

const (
	StagePreparation     Stage = "preparation"
	StageSynthesis       Stage = "synthesis"
	StageAvatarRendering Stage = "avatar_rendering"
	StageComposition     Stage = "composition"
	StagePostProcessing  Stage = "post_processing"
	StageUpload          Stage = "upload"
	StageAnalysis        Stage = "analysis"
)

// Stages lists the processing stages in execution order.
var Stages = []Stage{
	StagePreparation,
	StageSynthesis,
	StageAvatarRendering,
	StageComposition,
	StagePostProcessing,
	StageUpload,
	StageAnalysis,
}

var stageWeights = map[Stage]int{
	StagePreparation:     5,
	StageSynthesis:       15,
	StageAvatarRendering: 20,
	StageComposition:     25,
	StagePostProcessing:  15,
	StageUpload:          10,
	StageAnalysis:        10,
}

var stageOffsets = func() map[Stage]int {
	offsets := make(map[Stage]int, len(Stages))
	total := 0
	for _, stage := range Stages {
		offsets[stage] = total
		total += stageWeights[stage]
	}
	return offsets
}()

// Weight returns the share of overall progress reserved for the stage.
func (s Stage) Weight() int {
	return stageWeights[s]
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageWeights[s]
	return ok
}

// Label returns a human readable stage name such as "Avatar Rendering".
// A Caser holds state, so each call builds its own.
func (s Stage) Label() string {
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// OverallProgress maps a stage-internal percentage onto the job-wide 0-100
// scale. The result is capped at 99 so only completion reports 100.
func OverallProgress(stage Stage, percent float64) int {
	weight, ok := stageWeights[stage]
	if !ok {
		return 0
	}
	if percent < 0 || math.IsNaN(percent) {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	value := stageOffsets[stage] + int(math.Floor(float64(weight)*percent/100))
	if value > 99 {
		value = 99
	}
	return value
}
