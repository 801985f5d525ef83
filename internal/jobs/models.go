package jobs

import (
	"fmt"
	"strings"
	"time"

	"reelforge/internal/services"
)

// Status represents the lifecycle of a render job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var validTransitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusProcessing: true,
		StatusCancelled:  true,
		StatusFailed:     true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ValidateTransition returns an error when moving from one status to another
// is not allowed by the job state machine.
func ValidateTransition(from, to Status) error {
	if validTransitions[from][to] {
		return nil
	}
	return fmt.Errorf("%w: invalid status transition %s -> %s", services.ErrValidation, from, to)
}

// QualityTier is the user-facing quality bucket. It drives cost multipliers
// and whether two-pass encoding is used.
type QualityTier string

const (
	QualityDraft    QualityTier = "draft"
	QualityStandard QualityTier = "standard"
	QualityHigh     QualityTier = "high"
	QualityPremium  QualityTier = "premium"
	QualityUltra    QualityTier = "ultra"
)

var qualityMultipliers = map[QualityTier]float64{
	QualityDraft:    0.5,
	QualityStandard: 1.0,
	QualityHigh:     1.3,
	QualityPremium:  1.8,
	QualityUltra:    2.5,
}

// Multiplier returns the cost multiplier for the tier, 1.0 for unknown tiers.
func (q QualityTier) Multiplier() float64 {
	if m, ok := qualityMultipliers[q]; ok {
		return m
	}
	return 1.0
}

// Valid reports whether q is a known tier.
func (q QualityTier) Valid() bool {
	_, ok := qualityMultipliers[q]
	return ok
}

// TwoPass reports whether the tier encodes in two passes.
func (q QualityTier) TwoPass() bool {
	return q == QualityPremium || q == QualityUltra
}

// Background is passed through to the avatar collaborator untouched.
type Background struct {
	Color string `json:"color,omitempty"`
	Image string `json:"image,omitempty"`
}

// Scene is one ordered unit of script content. TargetDuration is provisional
// until synthesis returns the authoritative narration length.
type Scene struct {
	ID             string     `json:"id,omitempty"`
	Text           string     `json:"text"`
	AvatarID       string     `json:"avatar_id"`
	VoiceID        string     `json:"voice_id,omitempty"`
	Background     Background `json:"background,omitempty"`
	TargetDuration *float64   `json:"target_duration,omitempty"`
}

// PostProcessing selects optional enhancement passes.
type PostProcessing struct {
	FaceEnhancement bool `json:"face_enhancement,omitempty"`
	ColorCorrection bool `json:"color_correction,omitempty"`
	NoiseReduction  bool `json:"noise_reduction,omitempty"`
}

// Any reports whether at least one pass is enabled.
func (p PostProcessing) Any() bool {
	return p.FaceEnhancement || p.ColorCorrection || p.NoiseReduction
}

// Settings controls the output of a job.
type Settings struct {
	Resolution     string         `json:"resolution"`
	QualityTier    QualityTier    `json:"quality_tier"`
	Codec          string         `json:"codec"`
	Format         string         `json:"format"`
	FPS            int            `json:"fps"`
	Bitrate        string         `json:"bitrate,omitempty"`
	Preset         string         `json:"preset,omitempty"`
	Watermark      string         `json:"watermark,omitempty"`
	PostProcessing PostProcessing `json:"post_processing"`
}

// Outputs is set once a job completes.
type Outputs struct {
	VideoURL        string  `json:"video_url"`
	ThumbnailURL    string  `json:"thumbnail_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	FileSizeBytes   int64   `json:"file_size_bytes"`
}

// CostBreakdown is computed once when a job completes.
type CostBreakdown struct {
	TTSCost       float64 `json:"tts_cost"`
	AvatarCost    float64 `json:"avatar_cost"`
	RenderingCost float64 `json:"rendering_cost"`
	StorageCost   float64 `json:"storage_cost"`
	TotalCost     float64 `json:"total_cost"`
}

// QualityReport holds the informational scores from the analysis stage.
type QualityReport struct {
	VideoScore   float64 `json:"video_score"`
	AudioScore   float64 `json:"audio_score"`
	LipSyncScore float64 `json:"lip_sync_score"`
}

// JobError is the user-visible failure attached to failed jobs.
type JobError struct {
	Kind    services.ErrorKind `json:"kind"`
	Message string             `json:"message"`
}

// LogLevel classifies processing log entries.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one line of a job's persisted processing log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     Stage     `json:"stage,omitempty"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// RenderJob is the persisted record of one render request.
type RenderJob struct {
	ID          string
	ProjectID   string
	UserID      string
	Status      Status
	Progress    int
	Stage       Stage
	Error       *JobError
	Outputs     *Outputs
	Cost        *CostBreakdown
	Analysis    *QualityReport
	Scenes      []Scene
	Settings    Settings
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (j *RenderJob) Clone() *RenderJob {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	if j.Outputs != nil {
		o := *j.Outputs
		cp.Outputs = &o
	}
	if j.Cost != nil {
		c := *j.Cost
		cp.Cost = &c
	}
	if j.Analysis != nil {
		a := *j.Analysis
		cp.Analysis = &a
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.Scenes != nil {
		cp.Scenes = make([]Scene, len(j.Scenes))
		for i, scene := range j.Scenes {
			cp.Scenes[i] = scene
			if scene.TargetDuration != nil {
				d := *scene.TargetDuration
				cp.Scenes[i].TargetDuration = &d
			}
		}
	}
	return &cp
}

// Transition moves the job to a new status, enforcing the state machine and
// the invariants tied to terminal states.
func (j *RenderJob) Transition(to Status, now time.Time) error {
	if err := ValidateTransition(j.Status, to); err != nil {
		return err
	}
	j.Status = to
	switch to {
	case StatusProcessing:
		started := now
		j.StartedAt = &started
	case StatusCompleted:
		j.Progress = 100
		j.Error = nil
	}
	if to.IsTerminal() {
		completed := now
		j.CompletedAt = &completed
		if to != StatusCompleted {
			j.Outputs = nil
			j.Cost = nil
			if j.Progress >= 100 {
				j.Progress = 99
			}
		}
	}
	j.UpdatedAt = now
	return nil
}
