// Package transcode converts raw PCM files to packet dumps and back using
// one codec session per job.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/opuscodec/internal/config"
	"github.com/MrWong99/opuscodec/internal/observe"
	"github.com/MrWong99/opuscodec/pkg/audio"
	"github.com/MrWong99/opuscodec/pkg/opus"
)

// blockFrames is the number of codec frames read from a PCM input at once.
const blockFrames = 50

// Stats summarises one Encode or Decode run.
type Stats struct {
	Frames      int
	PCMBytes    int64
	PacketBytes int64
}

// Option configures a [Transcoder].
type Option func(*Transcoder)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Transcoder) { t.metrics = m }
}

// WithPCMFormat sets the format of the raw PCM side. Zero fields fall back
// to the codec's sample rate and channel count.
func WithPCMFormat(f audio.Format) Option {
	return func(t *Transcoder) { t.pcm = f }
}

// Transcoder runs encode and decode jobs. Its settings can be replaced while
// jobs are running; each job uses the settings current when it started.
type Transcoder struct {
	backend opus.Backend
	metrics *observe.Metrics

	mu    sync.RWMutex
	codec config.CodecConfig
	pcm   audio.Format
}

// New returns a Transcoder that creates sessions on backend.
func New(backend opus.Backend, codec config.CodecConfig, opts ...Option) *Transcoder {
	t := &Transcoder{backend: backend, codec: codec}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

// Update replaces the codec settings and PCM format used by jobs that start
// afterwards.
func (t *Transcoder) Update(codec config.CodecConfig, pcm audio.Format) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.codec = codec
	t.pcm = pcm
}

// settings returns a consistent snapshot of the codec settings and the
// resolved PCM format.
func (t *Transcoder) settings() (config.CodecConfig, audio.Format, audio.Format) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	codecFmt := audio.Format{SampleRate: t.codec.SampleRate, Channels: t.codec.Channels}
	pcmFmt := t.pcm
	if pcmFmt.SampleRate == 0 {
		pcmFmt.SampleRate = codecFmt.SampleRate
	}
	if pcmFmt.Channels == 0 {
		pcmFmt.Channels = codecFmt.Channels
	}
	return t.codec, codecFmt, pcmFmt
}

// NewSession returns an unconfigured session with the current codec
// parameters. No native state is created.
func (t *Transcoder) NewSession() *opus.Session {
	codec, _, _ := t.settings()
	return t.session(context.Background(), codec)
}

func (t *Transcoder) session(ctx context.Context, codec config.CodecConfig) *opus.Session {
	// Validated config always parses; an unknown name falls back to the
	// session default.
	app, err := opus.ParseApplication(codec.Application)
	if err != nil {
		app = opus.DefaultApplication
	}
	return opus.New(t.backend,
		opus.WithSampleRate(codec.SampleRate),
		opus.WithChannels(codec.Channels),
		opus.WithApplication(app),
		opus.WithLogger(observe.Logger(ctx)),
	)
}

// open creates a session and applies the controls relevant to op. Only the
// sub-state op needs is created.
func (t *Transcoder) open(ctx context.Context, op string, codec config.CodecConfig) (*opus.Session, error) {
	s := t.session(ctx, codec)
	t.metrics.ActiveSessions.Add(ctx, 1)

	var err error
	switch op {
	case observe.OpEncode:
		err = applyEncoderSettings(s, codec)
	case observe.OpDecode:
		err = applyCTLs(codec.DecoderCTLs, s.ApplyDecoderCTL)
	}
	if err != nil {
		t.close(ctx, s)
		t.metrics.RecordCodecError(ctx, op, errorKind(err))
		return nil, err
	}
	return s, nil
}

func (t *Transcoder) close(ctx context.Context, s *opus.Session) {
	_ = s.Close()
	t.metrics.ActiveSessions.Add(ctx, -1)
}

func applyEncoderSettings(s *opus.Session, codec config.CodecConfig) error {
	if codec.Bitrate != 0 {
		if err := s.SetBitrate(codec.Bitrate); err != nil {
			return err
		}
	}
	return applyCTLs(codec.EncoderCTLs, s.ApplyEncoderCTL)
}

func applyCTLs(ctls []config.CTLSetting, apply func(request, value int) error) error {
	for _, c := range ctls {
		req, err := c.Resolve()
		if err != nil {
			return fmt.Errorf("transcode: ctl %+v: %w", c, err)
		}
		if err := apply(req, c.Value); err != nil {
			return err
		}
	}
	return nil
}

// Encode reads raw PCM from r and writes a packet dump to w. Input is
// converted to the codec format if the PCM format differs, cut into frames
// of the configured duration, and the final partial frame is zero-padded.
func (t *Transcoder) Encode(ctx context.Context, r io.Reader, w io.Writer) (stats Stats, err error) {
	ctx, span := observe.StartSpan(ctx, "transcode.encode")
	defer func() { observe.EndSpan(span, err) }()

	codec, codecFmt, pcmFmt := t.settings()
	s, err := t.open(ctx, observe.OpEncode, codec)
	if err != nil {
		return stats, err
	}
	defer t.close(ctx, s)

	conv := &audio.Converter{From: pcmFmt, To: codecFmt}
	frameBytes := codecFmt.FrameBytes(codec.FrameDuration)
	inFrame := pcmFmt.Channels * 2
	in := make([]byte, pcmFmt.FrameBytes(codec.FrameDuration)*blockFrames)
	if frameBytes <= 0 || len(in) == 0 {
		return stats, fmt.Errorf("transcode: frame duration %s yields no samples at %s", codec.FrameDuration, codecFmt)
	}
	pw := NewPacketWriter(w)

	encodeFrames := func(frames [][]byte) error {
		for _, frame := range frames {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			pkt, err := s.EncodeMax(frame, codec.MaxDataBytes)
			if err != nil {
				t.metrics.RecordCodecError(ctx, observe.OpEncode, errorKind(err))
				return fmt.Errorf("transcode: frame %d: %w", stats.Frames, err)
			}
			t.metrics.RecordFrame(ctx, observe.OpEncode, time.Since(start), len(frame), len(pkt))
			if err := pw.WritePacket(pkt); err != nil {
				return fmt.Errorf("transcode: write packet: %w", err)
			}
			stats.Frames++
			stats.PacketBytes += int64(len(pkt))
		}
		return nil
	}

	var pending []byte
	for {
		n, rerr := io.ReadFull(r, in)
		if n > 0 {
			stats.PCMBytes += int64(n)
			block, cerr := conv.Convert(in[:n-n%inFrame])
			if cerr != nil {
				return stats, fmt.Errorf("transcode: convert: %w", cerr)
			}
			pending = append(pending, block...)
			frames := audio.Chunk(pending, frameBytes, false)
			if err := encodeFrames(frames); err != nil {
				return stats, err
			}
			pending = append(pending[:0], pending[len(frames)*frameBytes:]...)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return stats, fmt.Errorf("transcode: read pcm: %w", rerr)
		}
	}
	if err := encodeFrames(audio.Chunk(pending, frameBytes, true)); err != nil {
		return stats, err
	}
	if err := pw.Flush(); err != nil {
		return stats, fmt.Errorf("transcode: flush: %w", err)
	}
	return stats, nil
}

// Decode reads a packet dump from r and writes raw PCM in the configured PCM
// format to w.
func (t *Transcoder) Decode(ctx context.Context, r io.Reader, w io.Writer) (stats Stats, err error) {
	ctx, span := observe.StartSpan(ctx, "transcode.decode")
	defer func() { observe.EndSpan(span, err) }()

	codec, codecFmt, pcmFmt := t.settings()
	s, err := t.open(ctx, observe.OpDecode, codec)
	if err != nil {
		return stats, err
	}
	defer t.close(ctx, s)

	conv := &audio.Converter{From: codecFmt, To: pcmFmt}
	pr := NewPacketReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		pkt, err := pr.ReadPacket()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("transcode: packet %d: %w", stats.Frames, err)
		}

		start := time.Now()
		pcm, err := s.DecodeMax(pkt, codec.MaxFrameSamples)
		if err != nil {
			t.metrics.RecordCodecError(ctx, observe.OpDecode, errorKind(err))
			return stats, fmt.Errorf("transcode: packet %d: %w", stats.Frames, err)
		}
		t.metrics.RecordFrame(ctx, observe.OpDecode, time.Since(start), len(pcm), len(pkt))

		out, err := conv.Convert(pcm)
		if err != nil {
			return stats, fmt.Errorf("transcode: convert: %w", err)
		}
		if _, err := w.Write(out); err != nil {
			return stats, fmt.Errorf("transcode: write pcm: %w", err)
		}
		stats.Frames++
		stats.PacketBytes += int64(len(pkt))
		stats.PCMBytes += int64(len(out))
	}
}

// errorKind maps a codec error to a low-cardinality metric label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, opus.ErrEncoderUnavailable), errors.Is(err, opus.ErrDecoderUnavailable):
		return "unavailable"
	case errors.Is(err, opus.ErrSessionClosed):
		return "closed"
	case errors.Is(err, opus.ErrControlRejected):
		return "ctl"
	}

	var st opus.Status
	var encErr *opus.EncodeError
	var decErr *opus.DecodeError
	switch {
	case errors.As(err, &encErr):
		if encErr.Status == opus.StatusOK {
			return "empty"
		}
		st = encErr.Status
	case errors.As(err, &decErr):
		st = decErr.Status
	default:
		return "other"
	}
	name := st.String()
	if strings.HasPrefix(name, "UNKNOWN") {
		return "unknown"
	}
	return strings.ToLower(name)
}
