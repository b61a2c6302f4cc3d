package config

const (
	defaultMediaDir              = "~/media"
	defaultOutputDir             = "~/.local/share/squish/transcodes"
	defaultLogDir                = "~/.local/share/squish/logs"
	defaultSocket                = "~/.local/share/squish/squishd.sock"
	defaultLockFile              = "~/.local/share/squish/squishd.lock"
	defaultPresetsFile           = "~/.config/squish/presets.json"
	defaultFFmpegBin             = "ffmpeg"
	defaultFFprobeBin            = "ffprobe"
	defaultMaxConcurrent         = 1
	defaultMaxRetries            = 2
	defaultOriginalPolicy        = "keep"
	defaultRenderDevice          = "/dev/dri/renderD128"
	defaultProbeTTLSeconds       = 3600
	defaultQueuePollSeconds      = 5
	defaultProgressWriteMillis   = 500
	defaultDurationTolerancePct  = 5
	defaultDurationToleranceSecs = 2
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaDir:   defaultMediaDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			Socket:     defaultSocket,
			LockFile:   defaultLockFile,
			Presets:    defaultPresetsFile,
			FFmpegBin:  defaultFFmpegBin,
			FFprobeBin: defaultFFprobeBin,
		},
		Jobs: Jobs{
			MaxConcurrent:  defaultMaxConcurrent,
			MaxRetries:     defaultMaxRetries,
			OriginalPolicy: defaultOriginalPolicy,
		},
		Hardware: Hardware{
			Device:     defaultRenderDevice,
			ProbeTTL:   defaultProbeTTLSeconds,
			HotplugRef: true,
		},
		Workflow: Workflow{
			QueuePollInterval:      defaultQueuePollSeconds,
			ProgressWriteInterval:  defaultProgressWriteMillis,
			VerifyDurationTolPct:   defaultDurationTolerancePct,
			VerifyDurationTolFloor: defaultDurationToleranceSecs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
