package config

const (
	defaultConfigPath            = "~/.config/reelforge/config.toml"
	defaultStagingDir            = "~/.local/share/reelforge/staging"
	defaultStateDir              = "~/.local/share/reelforge"
	defaultLogDir                = "~/.local/share/reelforge/logs"
	defaultOutputDir             = "~/.local/share/reelforge/renders"
	defaultAPIBind               = "127.0.0.1:7489"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultMaxConcurrency        = 2
	defaultSceneConcurrency      = 3
	defaultEncoderBinary         = "ffmpeg"
	defaultProgressInterval      = 2
	defaultKillGraceSeconds      = 5
	defaultCollaboratorTimeout   = 300
	defaultSynthesisRPS          = 5
	defaultAvatarRPS             = 2
	defaultVoice                 = "narrator"
	defaultThumbnailAtSeconds    = 1
	defaultStorageRegion         = "us-east-1"
	defaultStoragePrefix         = "renders"
	defaultMaxRetries            = 3
	defaultRetryBaseDelaySeconds = 1
	defaultRetryMaxDelaySeconds  = 30
	defaultStorageCost           = 0.01
	defaultSweepIntervalMinutes  = 30
	defaultStaleAfterHours       = 24
)

// Storage backends.
const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Queue: Queue{
			MaxConcurrency:   defaultMaxConcurrency,
			SceneConcurrency: defaultSceneConcurrency,
		},
		Encoder: Encoder{
			Binary:                  defaultEncoderBinary,
			ProgressIntervalSeconds: defaultProgressInterval,
			KillGraceSeconds:        defaultKillGraceSeconds,
		},
		Synthesis: Synthesis{
			Collaborator: Collaborator{
				TimeoutSeconds:    defaultCollaboratorTimeout,
				RequestsPerSecond: defaultSynthesisRPS,
			},
			DefaultVoice: defaultVoice,
		},
		Avatar: Avatar{
			Collaborator: Collaborator{
				TimeoutSeconds:    defaultCollaboratorTimeout,
				RequestsPerSecond: defaultAvatarRPS,
			},
		},
		PostProcessing: PostProcessing{
			ThumbnailAtSeconds: defaultThumbnailAtSeconds,
		},
		Storage: Storage{
			Backend:   StorageBackendLocal,
			OutputDir: defaultOutputDir,
			Region:    defaultStorageRegion,
			Prefix:    defaultStoragePrefix,
		},
		Retry: Retry{
			MaxRetries:       defaultMaxRetries,
			BaseDelaySeconds: defaultRetryBaseDelaySeconds,
			MaxDelaySeconds:  defaultRetryMaxDelaySeconds,
		},
		Cost: Cost{
			StorageCost: defaultStorageCost,
		},
		Maintenance: Maintenance{
			SweepIntervalMinutes: defaultSweepIntervalMinutes,
			StaleAfterHours:      defaultStaleAfterHours,
		},
	}
}
