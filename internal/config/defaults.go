package config

const (
	defaultWorkingDir           = "~/.local/share/patternpress/work"
	defaultLogDir               = "~/.local/share/patternpress/logs"
	defaultAPIBind              = "127.0.0.1:3001"
	defaultEditorProcessName    = "imageeditor"
	defaultRunTimeout           = 120
	defaultLivenessPollInterval = 1
	defaultLivenessMaxWait      = 30
	defaultInputFile            = "temp.png"
	defaultPrintOutput          = "print.png"
	defaultMockupOutput         = "mockup.png"
	defaultPrintTimeout         = 180
	defaultMockupTimeout        = 180
	defaultPollIntervalMillis   = 300
	defaultSettleDelayMillis    = 1000
	defaultQueuePollInterval    = 2
	defaultErrorRetryInterval   = 10
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkingDir: defaultWorkingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Editor: Editor{
			ProcessName:          defaultEditorProcessName,
			RunTimeout:           defaultRunTimeout,
			LivenessPollInterval: defaultLivenessPollInterval,
			LivenessMaxWait:      defaultLivenessMaxWait,
		},
		Pipeline: Pipeline{
			InputFile:          defaultInputFile,
			PrintOutput:        defaultPrintOutput,
			MockupOutput:       defaultMockupOutput,
			PrintTimeout:       defaultPrintTimeout,
			MockupTimeout:      defaultMockupTimeout,
			PollIntervalMillis: defaultPollIntervalMillis,
			SettleDelayMillis:  defaultSettleDelayMillis,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Exports:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
