package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// fileStamp identifies one version of the watched file.
type fileStamp struct {
	modTime time.Time
	size    int64
	sum     [sha256.Size]byte
}

// Watcher keeps the last valid [Config] read from a file. It polls the file
// and can be asked to re-read it with [Watcher.Reload]. Edits that fail to
// parse or validate are logged and otherwise ignored; edits that leave the
// effective config unchanged (comments, reordering) do not fire onChange.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
	onChange func(d ConfigDiff, cfg *Config)

	// reloadMu serialises polling and explicit reloads.
	reloadMu sync.Mutex

	mu      sync.Mutex
	current *Config
	stamp   fileStamp

	stopOnce sync.Once
	done     chan struct{}
	exited   chan struct{}
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger for reload events. Defaults to
// [slog.Default].
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher loads path, which must hold a valid config, and starts polling
// it. onChange may be nil; it runs on the polling goroutine (or the caller of
// Reload) with the diff against the previous config.
func NewWatcher(path string, onChange func(d ConfigDiff, cfg *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		logger:   slog.Default(),
		onChange: onChange,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, stamp, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current = cfg
	w.stamp = stamp

	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Reload re-reads the file now, regardless of its modification time. It
// returns the read or validation error, in which case the current config is
// kept.
func (w *Watcher) Reload() error {
	return w.reload()
}

// Stop ends polling and waits for the polling goroutine to exit. It is safe
// to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	<-w.exited
}

func (w *Watcher) loop() {
	defer close(w.exited)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if w.touched() {
				_ = w.reload()
			}
		}
	}
}

// touched reports whether the file's size or modification time moved since
// the last read. Stat errors are logged and count as untouched.
func (w *Watcher) touched() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn("config watcher: stat failed", "path", w.path, "err", err)
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !info.ModTime().Equal(w.stamp.modTime) || info.Size() != w.stamp.size
}

func (w *Watcher) reload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	cfg, stamp, err := w.read()
	if err != nil {
		w.logger.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		if !stamp.modTime.IsZero() {
			// Do not re-read the same broken file on every tick.
			w.mu.Lock()
			w.stamp.modTime, w.stamp.size = stamp.modTime, stamp.size
			w.mu.Unlock()
		}
		return err
	}

	w.mu.Lock()
	old := w.current
	sameBytes := stamp.sum == w.stamp.sum
	w.stamp = stamp
	if !sameBytes {
		w.current = cfg
	}
	w.mu.Unlock()
	if sameBytes {
		return nil
	}

	d := Diff(old, cfg)
	if !d.Changed() {
		w.logger.Debug("config watcher: file changed, effective config did not", "path", w.path)
		return nil
	}
	w.logger.Info("config watcher: configuration reloaded",
		"path", w.path,
		"log_level_changed", d.LogLevelChanged,
		"codec_changed", d.CodecChanged,
		"restart_required", d.RestartRequired,
	)
	if w.onChange != nil {
		w.onChange(d, cfg)
	}
	return nil
}

// read loads and validates the file. The stamp describes the bytes read and
// is set whenever the file could be read, even if it does not validate.
func (w *Watcher) read() (*Config, fileStamp, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	stamp := fileStamp{
		modTime: info.ModTime(),
		size:    int64(len(data)),
		sum:     sha256.Sum256(data),
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, stamp, err
	}
	return cfg, stamp, nil
}
