package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeQueue()
	c.normalizeEncoder()
	c.normalizeCollaborators()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeRetry()
	c.normalizeMaintenance()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = envFallback(c.Paths.APIToken, "REELFORGE_API_TOKEN")
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeQueue() {
	if c.Queue.SceneConcurrency <= 0 {
		c.Queue.SceneConcurrency = defaultSceneConcurrency
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Binary = strings.TrimSpace(c.Encoder.Binary)
	if c.Encoder.Binary == "" {
		c.Encoder.Binary = defaultEncoderBinary
	}
	if c.Encoder.KillGraceSeconds <= 0 {
		c.Encoder.KillGraceSeconds = defaultKillGraceSeconds
	}
}

func (c *Config) normalizeCollaborators() {
	c.Synthesis.BaseURL = strings.TrimRight(envFallback(c.Synthesis.BaseURL, "REELFORGE_SYNTHESIS_URL"), "/")
	c.Synthesis.APIKey = envFallback(c.Synthesis.APIKey, "REELFORGE_SYNTHESIS_API_KEY")
	c.Synthesis.DefaultVoice = strings.TrimSpace(c.Synthesis.DefaultVoice)
	if c.Synthesis.DefaultVoice == "" {
		c.Synthesis.DefaultVoice = defaultVoice
	}

	c.Avatar.BaseURL = strings.TrimRight(envFallback(c.Avatar.BaseURL, "REELFORGE_AVATAR_URL"), "/")
	c.Avatar.APIKey = envFallback(c.Avatar.APIKey, "REELFORGE_AVATAR_API_KEY")
	avatars := make([]string, 0, len(c.Avatar.KnownAvatars))
	seen := make(map[string]struct{}, len(c.Avatar.KnownAvatars))
	for _, id := range c.Avatar.KnownAvatars {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		avatars = append(avatars, id)
	}
	c.Avatar.KnownAvatars = avatars

	c.PostProcessing.FaceEnhancerURL = strings.TrimRight(strings.TrimSpace(c.PostProcessing.FaceEnhancerURL), "/")
	c.PostProcessing.FaceEnhancerAPIKey = envFallback(c.PostProcessing.FaceEnhancerAPIKey, "REELFORGE_FACE_ENHANCER_API_KEY")
	if c.PostProcessing.ThumbnailAtSeconds < 0 {
		c.PostProcessing.ThumbnailAtSeconds = 0
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendLocal
	}
	if strings.TrimSpace(c.Storage.OutputDir) == "" {
		c.Storage.OutputDir = defaultOutputDir
	}
	var err error
	if c.Storage.OutputDir, err = expandPath(c.Storage.OutputDir); err != nil {
		return fmt.Errorf("storage.output_dir: %w", err)
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultStorageRegion
	}
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	c.Storage.PublicURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicURL), "/")
	c.Storage.AccessKeyID = envFallback(c.Storage.AccessKeyID, "REELFORGE_STORAGE_ACCESS_KEY")
	c.Storage.SecretAccessKey = envFallback(c.Storage.SecretAccessKey, "REELFORGE_STORAGE_SECRET_KEY")
	return nil
}

func (c *Config) normalizeRetry() {
	if c.Retry.MaxDelaySeconds <= 0 {
		c.Retry.MaxDelaySeconds = defaultRetryMaxDelaySeconds
	}
}

func (c *Config) normalizeMaintenance() {
	if c.Maintenance.SweepIntervalMinutes < 0 {
		c.Maintenance.SweepIntervalMinutes = 0
	}
}

func envFallback(value, key string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if env, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(env)
	}
	return ""
}
