package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCollaborators(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if c.Cost.StorageCost < 0 {
		return errors.New("cost.storage_cost must be >= 0")
	}
	return nil
}

func (c *Config) validateCollaborators() error {
	if c.Synthesis.BaseURL == "" {
		return fmt.Errorf("synthesis.base_url is required. Set REELFORGE_SYNTHESIS_URL or edit %s (create with 'reelforge config init')", configHint())
	}
	if c.Avatar.BaseURL == "" {
		return fmt.Errorf("avatar.base_url is required. Set REELFORGE_AVATAR_URL or edit %s (create with 'reelforge config init')", configHint())
	}
	for key, value := range map[string]string{
		"synthesis.base_url":                c.Synthesis.BaseURL,
		"avatar.base_url":                   c.Avatar.BaseURL,
		"post_processing.face_enhancer_url": c.PostProcessing.FaceEnhancerURL,
	} {
		if value == "" {
			continue
		}
		if err := validateHTTPURL(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if c.Synthesis.RequestsPerSecond < 0 || c.Avatar.RequestsPerSecond < 0 {
		return errors.New("requests_per_second must be >= 0")
	}
	return nil
}

func (c *Config) validateLimits() error {
	return ensurePositiveMap(map[string]int{
		"queue.max_concurrency":             c.Queue.MaxConcurrency,
		"queue.scene_concurrency":           c.Queue.SceneConcurrency,
		"encoder.progress_interval_seconds": c.Encoder.ProgressIntervalSeconds,
		"synthesis.timeout_seconds":         c.Synthesis.TimeoutSeconds,
		"avatar.timeout_seconds":            c.Avatar.TimeoutSeconds,
		"maintenance.stale_after_hours":     c.Maintenance.StaleAfterHours,
	})
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendLocal:
		if c.Storage.OutputDir == "" {
			return errors.New("storage.output_dir must be set for the local backend")
		}
	case StorageBackendS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set when storage.backend is s3")
		}
		if c.Storage.Endpoint != "" {
			if err := validateHTTPURL(c.Storage.Endpoint); err != nil {
				return fmt.Errorf("storage.endpoint: %w", err)
			}
		}
		if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
			return errors.New("storage.access_key_id and storage.secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (use local or s3)", c.Storage.Backend)
	}
	if c.Storage.PublicURL != "" {
		if err := validateHTTPURL(c.Storage.PublicURL); err != nil {
			return fmt.Errorf("storage.public_url: %w", err)
		}
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be >= 0")
	}
	if c.Retry.BaseDelaySeconds <= 0 {
		return errors.New("retry.base_delay_seconds must be positive")
	}
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		return errors.New("retry.max_delay_seconds must be >= retry.base_delay_seconds")
	}
	return nil
}

func validateHTTPURL(value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func configHint() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return defaultConfigPath
	}
	return path
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
