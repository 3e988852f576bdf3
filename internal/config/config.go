// Package config provides the configuration schema and loader for opusctl.
package config

import (
	"fmt"
	"time"

	"github.com/MrWong99/opuscodec/pkg/opus"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`

	Codec     CodecConfig     `yaml:"codec"`
	Observe   ObserveConfig   `yaml:"observe"`
	Transcode TranscodeConfig `yaml:"transcode"`
}

// CodecConfig describes the codec sessions created for each job.
type CodecConfig struct {
	// SampleRate in Hz. Not validated here: the native codec rejects
	// unsupported rates when a session first encodes or decodes.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the number of interleaved channels (1 or 2).
	Channels int `yaml:"channels"`

	// Application is the encoder profile: voip, audio or lowdelay.
	Application string `yaml:"application"`

	// FrameDuration is the PCM chunk length fed to each encode call.
	// Must be 2.5ms, 5ms, 10ms, 20ms, 40ms or 60ms.
	FrameDuration time.Duration `yaml:"frame_duration"`

	// MaxDataBytes caps the size of one encoded packet.
	MaxDataBytes int `yaml:"max_data_bytes"`

	// MaxFrameSamples caps the per-channel samples of one decoded packet.
	MaxFrameSamples int `yaml:"max_frame_samples"`

	// Bitrate in bits per second. Zero leaves the codec default; -1000
	// (auto) and -1 (max) are passed through.
	Bitrate int `yaml:"bitrate"`

	// EncoderCTLs are applied to the encoder, in order, before the first
	// frame is encoded.
	EncoderCTLs []CTLSetting `yaml:"encoder_ctls"`

	// DecoderCTLs are applied to the decoder before the first packet is
	// decoded.
	DecoderCTLs []CTLSetting `yaml:"decoder_ctls"`
}

// CTLSetting is a single codec control request. Either Name (see
// [opus.LookupCTL]) or a raw Request id must be set.
type CTLSetting struct {
	Name    string `yaml:"name"`
	Request int    `yaml:"request"`
	Value   int    `yaml:"value"`
}

// Resolve returns the request id of s.
func (s CTLSetting) Resolve() (int, error) {
	switch {
	case s.Name != "" && s.Request != 0:
		return 0, fmt.Errorf("set either name or request, not both")
	case s.Name != "":
		req, ok := opus.LookupCTL(s.Name)
		if !ok {
			return 0, fmt.Errorf("unknown ctl name %q", s.Name)
		}
		return req, nil
	case s.Request <= 0:
		return 0, fmt.Errorf("name or request is required")
	case opus.IsGetter(s.Request):
		return 0, fmt.Errorf("request %d is a getter and cannot be applied", s.Request)
	}
	return s.Request, nil
}

// ObserveConfig controls metrics and tracing.
type ObserveConfig struct {
	// MetricsAddr is the TCP address serving /metrics, /healthz and
	// /readyz (e.g., ":9090"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`

	// ServiceName is reported as the OpenTelemetry service.name.
	ServiceName string `yaml:"service_name"`

	// TraceSampleRatio is the fraction of root spans sampled, in [0, 1].
	// Zero samples every trace.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// TranscodeConfig controls batch execution.
type TranscodeConfig struct {
	// Workers bounds the number of files processed concurrently.
	Workers int `yaml:"workers"`

	// OutputDir receives the output files. Empty writes next to the input.
	OutputDir string `yaml:"output_dir"`

	// PCMSampleRate and PCMChannels describe the raw PCM files read by
	// encode and written by decode. Zero means the codec's own value; any
	// other value is converted on the fly.
	PCMSampleRate int `yaml:"pcm_sample_rate"`
	PCMChannels   int `yaml:"pcm_channels"`
}

// Default returns the configuration used for every field a config file does
// not set.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Codec: CodecConfig{
			SampleRate:      opus.DefaultSampleRate,
			Channels:        opus.DefaultChannels,
			Application:     opus.DefaultApplication.String(),
			FrameDuration:   20 * time.Millisecond,
			MaxDataBytes:    opus.DefaultMaxDataBytes,
			MaxFrameSamples: opus.DefaultMaxFrameSamples,
		},
		Observe: ObserveConfig{
			ServiceName: "opusctl",
		},
		Transcode: TranscodeConfig{
			Workers: 4,
		},
	}
}
