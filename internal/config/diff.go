package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be applied to a running batch are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CodecChanged is true if any codec field or the PCM file format
	// changed. Jobs that start after the change use the new settings.
	CodecChanged bool

	// RestartRequired lists fields that changed but only take effect on
	// the next run.
	RestartRequired []string
}

// Changed reports whether anything tracked by d differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.CodecChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}
	d.CodecChanged = !codecEqual(old.Codec, new.Codec) ||
		old.Transcode.PCMSampleRate != new.Transcode.PCMSampleRate ||
		old.Transcode.PCMChannels != new.Transcode.PCMChannels

	if old.Transcode.Workers != new.Transcode.Workers {
		d.RestartRequired = append(d.RestartRequired, "transcode.workers")
	}
	if old.Transcode.OutputDir != new.Transcode.OutputDir {
		d.RestartRequired = append(d.RestartRequired, "transcode.output_dir")
	}
	if old.Observe != new.Observe {
		d.RestartRequired = append(d.RestartRequired, "observe")
	}
	return d
}

func codecEqual(a, b CodecConfig) bool {
	return a.SampleRate == b.SampleRate &&
		a.Channels == b.Channels &&
		a.Application == b.Application &&
		a.FrameDuration == b.FrameDuration &&
		a.MaxDataBytes == b.MaxDataBytes &&
		a.MaxFrameSamples == b.MaxFrameSamples &&
		a.Bitrate == b.Bitrate &&
		slices.Equal(a.EncoderCTLs, b.EncoderCTLs) &&
		slices.Equal(a.DecoderCTLs, b.DecoderCTLs)
}
