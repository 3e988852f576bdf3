package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/opuscodec/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(config.Default(), config.Default())
	if d.Changed() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("got %+v", d)
	}
	if d.CodecChanged {
		t.Error("codec should be unchanged")
	}
	if !d.Changed() {
		t.Error("Changed() = false for a log level change")
	}
}

func TestDiff_Codec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bitrate", func(c *config.Config) { c.Codec.Bitrate = 64000 }},
		{"channels", func(c *config.Config) { c.Codec.Channels = 2 }},
		{"encoder ctl added", func(c *config.Config) {
			c.Codec.EncoderCTLs = append(c.Codec.EncoderCTLs, config.CTLSetting{Name: "dtx", Value: 1})
		}},
		{"pcm format", func(c *config.Config) { c.Transcode.PCMSampleRate = 44100 }},
		{"decoder ctl added", func(c *config.Config) {
			c.Codec.DecoderCTLs = []config.CTLSetting{{Name: "gain", Value: 100}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			new := config.Default()
			tc.mutate(new)
			if d := config.Diff(config.Default(), new); !d.CodecChanged {
				t.Errorf("CodecChanged = false for %s", tc.name)
			}
		})
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	new := config.Default()
	new.Transcode.Workers = 16
	new.Observe.MetricsAddr = ":9100"

	d := config.Diff(config.Default(), new)
	for _, want := range []string{"transcode.workers", "observe"} {
		if !slices.Contains(d.RestartRequired, want) {
			t.Errorf("RestartRequired = %v, missing %q", d.RestartRequired, want)
		}
	}
}
