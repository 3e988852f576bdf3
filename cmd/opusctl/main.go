// Command opusctl converts raw PCM files to Opus packet dumps and back.
//
// Usage:
//
//	opusctl [-config file] [-out dir] [-watch] encode|decode FILE...
//	opusctl [-config file] info
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/opuscodec/internal/config"
	"github.com/MrWong99/opuscodec/internal/health"
	"github.com/MrWong99/opuscodec/internal/observe"
	"github.com/MrWong99/opuscodec/internal/transcode"
	"github.com/MrWong99/opuscodec/pkg/audio"
	"github.com/MrWong99/opuscodec/pkg/opus"
	"github.com/MrWong99/opuscodec/pkg/opus/libopus"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (built-in defaults when empty)")
	outDir := flag.String("out", "", "output directory (overrides transcode.output_dir)")
	watch := flag.Bool("watch", false, "reload log level and codec settings when the config file changes")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return 2
	}
	cmd, files := args[0], args[1:]

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "opusctl: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "opusctl: %v\n", err)
		}
		return 1
	}
	if *outDir != "" {
		cfg.Transcode.OutputDir = *outDir
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	switch cmd {
	case "info":
		printInfo(cfg)
		return 0
	case observe.OpEncode, observe.OpDecode:
	default:
		fmt.Fprintf(os.Stderr, "opusctl: unknown command %q\n", cmd)
		flag.Usage()
		return 2
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "opusctl: %s needs at least one file\n", cmd)
		return 2
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:      cfg.Observe.ServiceName,
		ServiceVersion:   version,
		TraceSampleRatio: cfg.Observe.TraceSampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	tr := transcode.New(libopus.Backend{}, cfg.Codec, transcode.WithPCMFormat(pcmFormat(cfg.Transcode)))

	// ── Config hot-reload (optional) ──────────────────────────────────────────
	if *watch && *configPath != "" {
		w, err := config.NewWatcher(*configPath, func(d config.ConfigDiff, next *config.Config) {
			if d.LogLevelChanged {
				level.Set(slogLevel(d.NewLogLevel))
			}
			if d.CodecChanged {
				tr.Update(next.Codec, pcmFormat(next.Transcode))
			}
			for _, field := range d.RestartRequired {
				slog.Warn("config change needs a restart to take effect", "field", field)
			}
		})
		if err != nil {
			slog.Error("failed to start config watcher", "err", err)
			return 1
		}
		defer w.Stop()

		// SIGHUP reloads immediately instead of waiting for the next poll.
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					_ = w.Reload()
				}
			}
		}()
	}

	// ── Metrics and health server (optional) ──────────────────────────────────
	var srv *http.Server
	if addr := cfg.Observe.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(health.CodecChecker(tr.NewSession)).Register(mux)

		srv = &http.Server{
			Addr:              addr,
			Handler:           observe.Middleware(observe.DefaultMetrics(), "/metrics", "/healthz", "/readyz")(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
		slog.Info("metrics server listening", "addr", addr)
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, cmd, len(files))

	// ── Batch ─────────────────────────────────────────────────────────────────
	jobs := make([]transcode.Job, 0, len(files))
	for _, f := range files {
		job, err := transcode.NewJob(cmd, f, cfg.Transcode.OutputDir)
		if err != nil {
			slog.Error("invalid job", "input", f, "err", err)
			return 1
		}
		jobs = append(jobs, job)
	}

	start := time.Now()
	results, batchErr := tr.RunBatch(ctx, jobs, cfg.Transcode.Workers)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	slog.Info("batch finished",
		"jobs", len(results),
		"failed", failed,
		"duration", time.Since(start),
	)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}

	if batchErr != nil {
		if errors.Is(batchErr, context.Canceled) {
			slog.Warn("batch interrupted")
		}
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage:
  opusctl [flags] encode FILE...   raw PCM -> packet dump (%s)
  opusctl [flags] decode FILE...   packet dump -> raw PCM (%s)
  opusctl [flags] info             print codec library and settings

Flags:
`, transcode.PacketExt, transcode.PCMExt)
	flag.PrintDefaults()
}

// loadConfig returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func pcmFormat(tc config.TranscodeConfig) audio.Format {
	return audio.Format{SampleRate: tc.PCMSampleRate, Channels: tc.PCMChannels}
}

// ── Output ────────────────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, cmd string, files int) {
	c := cfg.Codec
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         opusctl startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Command", cmd)
	printRow("Files", fmt.Sprint(files))
	printRow("Codec", fmt.Sprintf("%d Hz / %d ch", c.SampleRate, c.Channels))
	printRow("Application", c.Application)
	printRow("Frame", c.FrameDuration.String())
	printRow("Bitrate", bitrateString(c.Bitrate))
	printRow("Workers", fmt.Sprint(cfg.Transcode.Workers))
	if cfg.Transcode.OutputDir != "" {
		printRow("Output dir", cfg.Transcode.OutputDir)
	} else {
		printRow("Output dir", "(next to input)")
	}
	if cfg.Observe.MetricsAddr != "" {
		printRow("Metrics addr", cfg.Observe.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(key, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", key, value)
}

func bitrateString(b int) string {
	switch b {
	case 0:
		return "(codec default)"
	case opus.Auto:
		return "auto"
	case opus.BitrateMax:
		return "max"
	}
	return fmt.Sprintf("%d bps", b)
}

func printInfo(cfg *config.Config) {
	c := cfg.Codec
	sizes := make([]string, 0, 6)
	for _, n := range opus.FrameSizes(c.SampleRate) {
		sizes = append(sizes, fmt.Sprint(n))
	}
	fmt.Printf("library:        %s\n", libopus.Version())
	fmt.Printf("sample rate:    %d Hz\n", c.SampleRate)
	fmt.Printf("channels:       %d\n", c.Channels)
	fmt.Printf("application:    %s\n", c.Application)
	fmt.Printf("frame duration: %s (%d samples)\n", c.FrameDuration, opus.FrameSize(c.SampleRate, c.FrameDuration))
	fmt.Printf("frame sizes:    %s\n", strings.Join(sizes, " "))
	fmt.Printf("bitrate:        %s\n", bitrateString(c.Bitrate))
	fmt.Printf("max packet:     %d bytes\n", c.MaxDataBytes)
	fmt.Printf("encoder ctls:   %d\n", len(c.EncoderCTLs))
	fmt.Printf("decoder ctls:   %d\n", len(c.DecoderCTLs))
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
