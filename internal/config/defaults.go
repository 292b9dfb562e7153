package config

const (
	defaultInputDir  = "~/.local/share/sprocket/input"
	defaultOutputDir = "~/.local/share/sprocket/output"
	defaultLogDir    = "~/.local/share/sprocket/logs"
	defaultAPIBind   = "127.0.0.1:7519"
	defaultWorkers   = 4
	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Processing: Processing{
			Workers: defaultWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
