package config

const (
	defaultDataDir = "~/.local/share/hyperion"
	defaultLogDir  = "~/.local/share/hyperion/logs"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultQueuePollInterval = 10
	defaultPingInterval      = 15
	defaultOfflineThreshold  = 120
	defaultExtractionSeconds = 5
	defaultProcessingSeconds = 20

	defaultReaperInterval        = 600
	defaultReaperPendingTimeout  = 900
	defaultReaperUploadedTimeout = 600

	defaultNtfyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Fleet: Fleet{
			QueuePollInterval: defaultQueuePollInterval,
			PingInterval:      defaultPingInterval,
			OfflineThreshold:  defaultOfflineThreshold,
			ExtractionSeconds: defaultExtractionSeconds,
			ProcessingSeconds: defaultProcessingSeconds,
		},
		Reaper: Reaper{
			Interval:        defaultReaperInterval,
			PendingTimeout:  defaultReaperPendingTimeout,
			UploadedTimeout: defaultReaperUploadedTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
