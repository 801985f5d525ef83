package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Queue bounds how much work runs at once.
type Queue struct {
	MaxConcurrency   int `toml:"max_concurrency"`
	SceneConcurrency int `toml:"scene_concurrency"`
}

// Encoder configures the external encoder binary.
type Encoder struct {
	Binary                  string `toml:"binary"`
	ProgressIntervalSeconds int    `toml:"progress_interval_seconds"`
	KillGraceSeconds        int    `toml:"kill_grace_seconds"`
}

// Collaborator describes an HTTP service the pipeline calls per scene.
type Collaborator struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Synthesis configures the speech synthesis collaborator.
type Synthesis struct {
	Collaborator
	DefaultVoice string `toml:"default_voice"`
}

// Avatar configures the avatar rendering collaborator. An empty KnownAvatars
// list accepts any non-empty avatar id at submit time.
type Avatar struct {
	Collaborator
	KnownAvatars []string `toml:"known_avatars"`
}

// PostProcessing configures optional enhancement passes.
type PostProcessing struct {
	FaceEnhancerURL    string  `toml:"face_enhancer_url"`
	FaceEnhancerAPIKey string  `toml:"face_enhancer_api_key"`
	ThumbnailAtSeconds float64 `toml:"thumbnail_at_seconds"`
}

// Storage selects where finished renders are published.
type Storage struct {
	Backend         string `toml:"backend"`
	OutputDir       string `toml:"output_dir"`
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	PublicURL       string `toml:"public_url"`
	Prefix          string `toml:"prefix"`
	UsePathStyle    bool   `toml:"use_path_style"`
}

// Retry configures the collaborator retry policy.
type Retry struct {
	MaxRetries       int     `toml:"max_retries"`
	BaseDelaySeconds float64 `toml:"base_delay_seconds"`
	MaxDelaySeconds  float64 `toml:"max_delay_seconds"`
}

// Cost configures fixed cost inputs.
type Cost struct {
	StorageCost float64 `toml:"storage_cost"`
}

// Maintenance configures the daemon's periodic cleanup.
type Maintenance struct {
	SweepIntervalMinutes int `toml:"sweep_interval_minutes"`
	StaleAfterHours      int `toml:"stale_after_hours"`
}

// Config encapsulates all configuration values for reelforge.
//
// Configuration sections by subsystem:
//   - Paths: staging, state and log directories plus the API bind address
//   - Logging: log format, level, and retention
//   - Queue: job and per-job scene concurrency
//   - Encoder: encoder binary and progress cadence
//   - Synthesis / Avatar: HTTP collaborators called per scene
//   - PostProcessing: face enhancer endpoint and thumbnail offset
//   - Storage: local directory or S3-compatible bucket for outputs
//   - Retry: collaborator retry policy
//   - Cost: fixed cost inputs
//   - Maintenance: stale staging sweep cadence
type Config struct {
	Paths          Paths          `toml:"paths"`
	Logging        Logging        `toml:"logging"`
	Queue          Queue          `toml:"queue"`
	Encoder        Encoder        `toml:"encoder"`
	Synthesis      Synthesis      `toml:"synthesis"`
	Avatar         Avatar         `toml:"avatar"`
	PostProcessing PostProcessing `toml:"post_processing"`
	Storage        Storage        `toml:"storage"`
	Retry          Retry          `toml:"retry"`
	Cost           Cost           `toml:"cost"`
	Maintenance    Maintenance    `toml:"maintenance"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageBackendLocal {
		dirs = append(dirs, c.Storage.OutputDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite job store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "reelforged.lock")
}

// EncoderBinary returns the encoder executable name.
func (c *Config) EncoderBinary() string {
	if strings.TrimSpace(c.Encoder.Binary) == "" {
		return defaultEncoderBinary
	}
	return c.Encoder.Binary
}

// ProgressInterval is the longest gap between two encoder progress events.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Encoder.ProgressIntervalSeconds) * time.Second
}

// KillGrace is how long a terminated encoder may take before it is killed.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Encoder.KillGraceSeconds) * time.Second
}

// Timeout returns the per-call deadline for the collaborator.
func (c Collaborator) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BaseDelay returns the first retry delay.
func (r Retry) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySeconds * float64(time.Second))
}

// MaxDelay caps any single retry delay.
func (r Retry) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelaySeconds * float64(time.Second))
}

// SweepInterval returns how often stale staging directories are swept.
func (m Maintenance) SweepInterval() time.Duration {
	return time.Duration(m.SweepIntervalMinutes) * time.Minute
}

// StaleAfter is the age after which an unclaimed staging directory is removed.
func (m Maintenance) StaleAfter() time.Duration {
	return time.Duration(m.StaleAfterHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
