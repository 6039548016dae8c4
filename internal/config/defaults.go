package config

const (
	defaultWorkDir             = "~/.local/share/podscrub/work"
	defaultLogDir              = "~/.local/share/podscrub/logs"
	defaultConcurrency         = 2
	defaultPollInterval        = 15
	defaultDrainTimeout        = 300
	defaultScannerInterval     = 3600
	defaultRetentionDays       = 14
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultFFmpegTimeout       = 600
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1"
	defaultLLMAudioModel       = "google/gemini-3-flash-preview"
	defaultLLMTextModel        = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds   = 120
	defaultLLMCostCeiling      = 1.0
	defaultStorageBucket       = "episodes"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Scheduler: Scheduler{
			Concurrency:  defaultConcurrency,
			PollInterval: defaultPollInterval,
			DrainTimeout: defaultDrainTimeout,
		},
		Scanner: Scanner{
			Enabled:       true,
			Interval:      defaultScannerInterval,
			RetentionDays: defaultRetentionDays,
		},
		FFmpeg: FFmpeg{
			Binary:         defaultFFmpegBinary,
			ProbeBinary:    defaultFFprobeBinary,
			TimeoutSeconds: defaultFFmpegTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			AudioModel:     defaultLLMAudioModel,
			TextModel:      defaultLLMTextModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			CostCeiling:    defaultLLMCostCeiling,
		},
		Storage: Storage{
			Bucket: defaultStorageBucket,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
