package queue

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"reelforge/internal/jobs"
	"reelforge/internal/pipeline"
)

// Submission defaults applied to empty settings fields.
const (
	DefaultResolution  = "1080p"
	DefaultQualityTier = jobs.QualityStandard
	DefaultCodec       = "h264"
	DefaultFormat      = "mp4"
	DefaultFPS         = 30
)

// SubmitRequest is a render request as clients send it.
type SubmitRequest struct {
	ProjectID string          `json:"project_id,omitempty" validate:"omitempty,max=128"`
	UserID    string          `json:"user_id,omitempty" validate:"omitempty,max=128"`
	Scenes    []SceneRequest  `json:"scenes" validate:"required,min=1,max=200,dive"`
	Settings  SettingsRequest `json:"settings"`
}

// SceneRequest is one scene of a SubmitRequest.
type SceneRequest struct {
	ID             string          `json:"id,omitempty" validate:"omitempty,max=128"`
	Text           string          `json:"text" validate:"required,max=5000"`
	AvatarID       string          `json:"avatar_id" validate:"required,max=128"`
	VoiceID        string          `json:"voice_id,omitempty" validate:"omitempty,max=128"`
	Background     jobs.Background `json:"background,omitempty"`
	TargetDuration *float64        `json:"target_duration,omitempty" validate:"omitempty,gt=0"`
}

// SettingsRequest carries output settings. Empty fields take the package
// defaults.
type SettingsRequest struct {
	Resolution     string              `json:"resolution,omitempty"`
	QualityTier    string              `json:"quality_tier,omitempty" validate:"oneof=draft standard high premium ultra"`
	Codec          string              `json:"codec,omitempty" validate:"oneof=h264 h265 hevc vp9 av1"`
	Format         string              `json:"format,omitempty" validate:"oneof=mp4 mov mkv webm"`
	FPS            int                 `json:"fps,omitempty" validate:"min=1,max=120"`
	Bitrate        string              `json:"bitrate,omitempty" validate:"omitempty,max=16"`
	Preset         string              `json:"preset,omitempty" validate:"omitempty,max=32"`
	Watermark      string              `json:"watermark,omitempty" validate:"omitempty,max=200"`
	PostProcessing jobs.PostProcessing `json:"post_processing"`
}

// Validator checks submissions before any job is created.
type Validator struct {
	v            *validator.Validate
	knownAvatars map[string]struct{}
}

// NewValidator returns a validator. An empty knownAvatars accepts every
// avatar id.
func NewValidator(knownAvatars []string) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	known := make(map[string]struct{}, len(knownAvatars))
	for _, id := range knownAvatars {
		if id = strings.TrimSpace(id); id != "" {
			known[id] = struct{}{}
		}
	}
	return &Validator{v: v, knownAvatars: known}
}

// Validate normalizes req and converts it into job scenes and settings. The
// returned error wraps services.ErrValidation.
func (val *Validator) Validate(req SubmitRequest) ([]jobs.Scene, jobs.Settings, error) {
	req = normalizeRequest(req)
	verr := &ValidationError{Fields: map[string]string{}}
	if err := val.v.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, jobs.Settings{}, fmt.Errorf("validate submission: %w", err)
		}
		verr = formatValidationErrors(verrs)
	}

	if len(val.knownAvatars) > 0 {
		for i, scene := range req.Scenes {
			field := fmt.Sprintf("scenes[%d].avatar_id", i)
			if _, flagged := verr.Fields[field]; flagged || scene.AvatarID == "" {
				continue
			}
			if _, ok := val.knownAvatars[scene.AvatarID]; !ok {
				verr.Fields[field] = fmt.Sprintf("unknown avatar %q", scene.AvatarID)
			}
		}
	}

	settings := jobs.Settings{
		Resolution:     req.Settings.Resolution,
		QualityTier:    jobs.QualityTier(req.Settings.QualityTier),
		Codec:          req.Settings.Codec,
		Format:         req.Settings.Format,
		FPS:            req.Settings.FPS,
		Bitrate:        req.Settings.Bitrate,
		Preset:         req.Settings.Preset,
		Watermark:      req.Settings.Watermark,
		PostProcessing: req.Settings.PostProcessing,
	}
	// Output resolution only makes sense once every settings field passed.
	if !hasFieldPrefix(verr.Fields, "settings.") {
		if _, _, err := pipeline.ResolveOutput(settings); err != nil {
			verr.Fields["settings"] = err.Error()
		}
	}
	if len(verr.Fields) > 0 {
		return nil, jobs.Settings{}, verr
	}

	scenes := make([]jobs.Scene, len(req.Scenes))
	for i, s := range req.Scenes {
		id := s.ID
		if id == "" {
			id = fmt.Sprintf("scene-%d", i+1)
		}
		scenes[i] = jobs.Scene{
			ID:             id,
			Text:           s.Text,
			AvatarID:       s.AvatarID,
			VoiceID:        s.VoiceID,
			Background:     s.Background,
			TargetDuration: s.TargetDuration,
		}
	}
	return scenes, settings, nil
}

func normalizeRequest(req SubmitRequest) SubmitRequest {
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.UserID = strings.TrimSpace(req.UserID)
	scenes := make([]SceneRequest, len(req.Scenes))
	for i, s := range req.Scenes {
		s.ID = strings.TrimSpace(s.ID)
		s.Text = strings.TrimSpace(s.Text)
		s.AvatarID = strings.TrimSpace(s.AvatarID)
		s.VoiceID = strings.TrimSpace(s.VoiceID)
		if s.TargetDuration != nil {
			d := *s.TargetDuration
			s.TargetDuration = &d
		}
		scenes[i] = s
	}
	if req.Scenes != nil {
		req.Scenes = scenes
	}

	st := &req.Settings
	st.Resolution = strings.ToLower(strings.TrimSpace(st.Resolution))
	st.QualityTier = strings.ToLower(strings.TrimSpace(st.QualityTier))
	st.Codec = strings.ToLower(strings.TrimSpace(st.Codec))
	st.Format = strings.ToLower(strings.TrimSpace(st.Format))
	st.Bitrate = strings.TrimSpace(st.Bitrate)
	st.Preset = strings.TrimSpace(st.Preset)
	st.Watermark = strings.TrimSpace(st.Watermark)
	if st.Resolution == "" {
		st.Resolution = DefaultResolution
	}
	if st.QualityTier == "" {
		st.QualityTier = string(DefaultQualityTier)
	}
	if st.Codec == "" {
		st.Codec = DefaultCodec
	}
	if st.Format == "" {
		st.Format = DefaultFormat
	}
	if st.FPS == 0 {
		st.FPS = DefaultFPS
	}
	return req
}

func hasFieldPrefix(fields map[string]string, prefix string) bool {
	for field := range fields {
		if strings.HasPrefix(field, prefix) {
			return true
		}
	}
	return false
}

func formatValidationErrors(verrs validator.ValidationErrors) *ValidationError {
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, e := range verrs {
		field := e.Namespace()
		// Drop the root struct name.
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		reason := e.Tag()
		if e.Param() != "" {
			reason += "=" + e.Param()
		}
		out.Fields[field] = reason
	}
	return out
}
