package config

const (
	defaultConfigPath           = "~/.config/fanboxed/config.toml"
	projectConfigName           = "fanboxed.toml"
	defaultOutputDir            = "~/Downloads/fanboxed"
	defaultStateDir             = "~/.local/share/fanboxed"
	defaultAPIBaseURL           = "https://api.fanbox.cc"
	defaultOrigin               = "https://www.fanbox.cc"
	defaultUserAgent            = "fanboxed/dev"
	defaultRequestTimeout       = 60
	defaultFilenameTemplate     = "[{year:04}-{month:02}-{day:02}] [{author}] {title}.zip"
	defaultDescriptionName      = "description.txt"
	defaultCoverTemplate        = "cover.{ext}"
	defaultPageTemplate         = "page_{index:03}.{ext}"
	defaultAPIBind              = "127.0.0.1:7490"
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	envSessionID                = "FANBOX_SESSID"
	envAPIToken                 = "FANBOXED_API_TOKEN"
	envNtfyTopic                = "FANBOXED_NTFY_TOPIC"
	defaultIncludeFiles         = true
	defaultNotifyFailures       = true
	defaultHistoryEnabled       = true
	defaultHistorySkipCompleted = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
		},
		Fanbox: Fanbox{
			APIBaseURL:     defaultAPIBaseURL,
			Origin:         defaultOrigin,
			UserAgent:      defaultUserAgent,
			IncludeFiles:   defaultIncludeFiles,
			RequestTimeout: defaultRequestTimeout,
		},
		Archive: Archive{
			FilenameTemplate: defaultFilenameTemplate,
			DescriptionName:  defaultDescriptionName,
			CoverTemplate:    defaultCoverTemplate,
			PageTemplate:     defaultPageTemplate,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Failures:       defaultNotifyFailures,
		},
		History: History{
			Enabled:       defaultHistoryEnabled,
			SkipCompleted: defaultHistorySkipCompleted,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
