package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/opuscodec/pkg/opus"
)

// NativeSampleRates lists the rates the reference codec accepts. Used by
// [Validate] to warn about unusual rates; other values are still passed
// through to the codec.
var NativeSampleRates = []int{8000, 12000, 16000, 24000, 48000}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Codec
	c := cfg.Codec
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("codec.sample_rate must be positive, got %d", c.SampleRate))
	} else if !slices.Contains(NativeSampleRates, c.SampleRate) {
		slog.Warn("codec.sample_rate is not a native opus rate; session creation will likely fail",
			"sample_rate", c.SampleRate,
			"native", NativeSampleRates,
		)
	}
	if c.Channels != 1 && c.Channels != 2 {
		errs = append(errs, fmt.Errorf("codec.channels %d is invalid; valid values: 1, 2", c.Channels))
	}
	if _, err := opus.ParseApplication(c.Application); err != nil {
		errs = append(errs, fmt.Errorf("codec.application: %w", err))
	}
	if !opus.ValidFrameDuration(c.FrameDuration) {
		errs = append(errs, fmt.Errorf("codec.frame_duration %s is invalid; valid values: 2.5ms, 5ms, 10ms, 20ms, 40ms, 60ms", c.FrameDuration))
	}
	if c.MaxDataBytes <= 0 {
		errs = append(errs, fmt.Errorf("codec.max_data_bytes must be positive, got %d", c.MaxDataBytes))
	}
	if c.MaxFrameSamples <= 0 {
		errs = append(errs, fmt.Errorf("codec.max_frame_samples must be positive, got %d", c.MaxFrameSamples))
	}
	if c.Bitrate < 0 && c.Bitrate != opus.Auto && c.Bitrate != opus.BitrateMax {
		errs = append(errs, fmt.Errorf("codec.bitrate %d is invalid; use a positive value, -1000 (auto) or -1 (max)", c.Bitrate))
	}
	errs = append(errs, validateCTLs("codec.encoder_ctls", c.EncoderCTLs)...)
	errs = append(errs, validateCTLs("codec.decoder_ctls", c.DecoderCTLs)...)

	// Transcode
	if cfg.Transcode.Workers < 1 {
		errs = append(errs, fmt.Errorf("transcode.workers must be at least 1, got %d", cfg.Transcode.Workers))
	}
	if cfg.Transcode.PCMSampleRate < 0 {
		errs = append(errs, fmt.Errorf("transcode.pcm_sample_rate must not be negative, got %d", cfg.Transcode.PCMSampleRate))
	}
	if cfg.Transcode.PCMChannels < 0 || cfg.Transcode.PCMChannels > 2 {
		errs = append(errs, fmt.Errorf("transcode.pcm_channels %d is invalid; valid values: 0 (codec), 1, 2", cfg.Transcode.PCMChannels))
	}

	if r := cfg.Observe.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observe.trace_sample_ratio must be within [0, 1], got %g", r))
	}
	if cfg.Observe.MetricsAddr != "" && cfg.Observe.ServiceName == "" {
		slog.Warn("observe.service_name is empty; metrics will carry no service name")
	}

	return errors.Join(errs...)
}

func validateCTLs(field string, ctls []CTLSetting) []error {
	var errs []error
	for i, s := range ctls {
		if _, err := s.Resolve(); err != nil {
			errs = append(errs, fmt.Errorf("%s[%d]: %w", field, i, err))
		}
	}
	return errs
}
