package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/opuscodec/internal/observe"
)

// File extensions written by [NewJob].
const (
	PacketExt = ".opuspkt"
	PCMExt    = ".pcm"
)

// Job is a single file conversion.
type Job struct {
	// ID correlates log lines of one job.
	ID string

	// Op is [observe.OpEncode] or [observe.OpDecode].
	Op string

	Input  string
	Output string
}

// Result is the outcome of one [Job].
type Result struct {
	Job      Job
	Stats    Stats
	Duration time.Duration
	Err      error
}

// NewJob builds a job for input. The output keeps the input's base name with
// the extension of the produced format and is placed in outDir, or next to
// the input when outDir is empty.
func NewJob(op, input, outDir string) (Job, error) {
	var ext string
	switch op {
	case observe.OpEncode:
		ext = PacketExt
	case observe.OpDecode:
		ext = PCMExt
	default:
		return Job{}, fmt.Errorf("transcode: unknown operation %q", op)
	}
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return Job{
		ID:     uuid.NewString(),
		Op:     op,
		Input:  input,
		Output: filepath.Join(dir, base+ext),
	}, nil
}

// Run executes job. A partially written output file is removed on failure.
func (t *Transcoder) Run(ctx context.Context, job Job) (Stats, error) {
	in, err := os.Open(job.Input)
	if err != nil {
		return Stats{}, fmt.Errorf("transcode: open %q: %w", job.Input, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return Stats{}, fmt.Errorf("transcode: create output dir: %w", err)
	}
	out, err := os.Create(job.Output)
	if err != nil {
		return Stats{}, fmt.Errorf("transcode: create %q: %w", job.Output, err)
	}

	var stats Stats
	switch job.Op {
	case observe.OpEncode:
		stats, err = t.Encode(ctx, in, out)
	case observe.OpDecode:
		stats, err = t.Decode(ctx, in, out)
	default:
		err = fmt.Errorf("transcode: unknown operation %q", job.Op)
	}
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("transcode: close %q: %w", job.Output, cerr)
	}
	if err != nil {
		_ = os.Remove(job.Output)
		return stats, err
	}
	return stats, nil
}

// RunBatch runs jobs with at most workers in flight. A failed job does not
// stop the others; cancelling ctx does. Results are returned in job order
// together with the joined job errors.
func (t *Transcoder) RunBatch(ctx context.Context, jobs []Job, workers int) ([]Result, error) {
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, job := range jobs {
		if ctx.Err() != nil {
			results[i] = Result{Job: job, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			results[i] = t.runOne(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Job.Input, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (t *Transcoder) runOne(ctx context.Context, job Job) Result {
	log := observe.Logger(ctx).With("job_id", job.ID, "op", job.Op, "input", job.Input)
	log.Debug("job started", "output", job.Output)

	start := time.Now()
	stats, err := t.Run(ctx, job)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		log.Error("job failed", "err", err, "duration", elapsed)
	} else {
		log.Info("job finished",
			"output", job.Output,
			"frames", stats.Frames,
			"pcm_bytes", stats.PCMBytes,
			"packet_bytes", stats.PacketBytes,
			"duration", elapsed,
		)
	}
	t.metrics.RecordJob(ctx, job.Op, status, elapsed)
	return Result{Job: job, Stats: stats, Duration: elapsed, Err: err}
}
