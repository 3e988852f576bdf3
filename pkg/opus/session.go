// Package opus provides a lazily initialised Opus codec session.
//
// A [Session] holds a fixed configuration (sample rate, channel count and
// [Application] profile) and two independent native sub-states: an encoder
// and a decoder. Neither exists until an operation needs it, so a session that
// only ever decodes never allocates an encoder. Creation failures are not
// remembered: every call that needs a missing sub-state tries to create it
// again with the same configuration.
//
// PCM is exchanged as interleaved little-endian 16-bit samples. Packets are
// opaque byte slices produced and consumed by the native codec.
//
// A Session is not safe for concurrent use. The encoder and decoder halves
// may be driven from two goroutines as long as no two calls touch the same
// half at once.
package opus

import (
	"log/slog"

	"github.com/MrWong99/opuscodec/pkg/audio"
)

const (
	// DefaultSampleRate is the sample rate used when none is configured.
	DefaultSampleRate = 48000

	// DefaultChannels is the channel count used when none is configured.
	DefaultChannels = 1

	// DefaultApplication is the encoder profile used when none is configured.
	DefaultApplication = ApplicationVoIP

	// DefaultMaxDataBytes is the packet capacity used by [Session.Encode].
	// It is the practical ceiling recommended for a single Opus packet.
	DefaultMaxDataBytes = 4000

	// DefaultMaxFrameSamples is the per-channel sample cap used by
	// [Session.Decode].
	DefaultMaxFrameSamples = 4000
)

// State describes the lifecycle of one sub-state of a [Session].
type State int

const (
	// StateAbsent means the sub-state has not been created (or creation
	// failed).
	StateAbsent State = iota

	// StateCreated means a native handle exists and is owned by the session.
	StateCreated

	// StateDestroyed means the session was closed.
	StateDestroyed
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateCreated:
		return "created"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Option configures a [Session] at construction.
type Option func(*Session)

// WithSampleRate sets the sample rate in Hz. The value is not checked here;
// the native codec rejects unsupported rates when a sub-state is created.
func WithSampleRate(rate int) Option {
	return func(s *Session) { s.sampleRate = rate }
}

// WithChannels sets the number of interleaved channels.
func WithChannels(channels int) Option {
	return func(s *Session) { s.channels = channels }
}

// WithApplication sets the encoder profile.
func WithApplication(app Application) Option {
	return func(s *Session) { s.application = app }
}

// WithLogger sets the logger used for sub-state lifecycle events. Defaults
// to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is a stateful Opus codec session. Create one with [New].
type Session struct {
	backend Backend
	logger  *slog.Logger

	sampleRate  int
	channels    int
	application Application

	encoder NativeEncoder
	decoder NativeDecoder
	closed  bool
}

// New returns a session bound to backend. It performs no validation and no
// native allocation; both sub-states start out [StateAbsent].
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:     backend,
		sampleRate:  DefaultSampleRate,
		channels:    DefaultChannels,
		application: DefaultApplication,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SampleRate returns the configured sample rate.
func (s *Session) SampleRate() int { return s.sampleRate }

// Channels returns the configured channel count.
func (s *Session) Channels() int { return s.channels }

// Application returns the configured encoder profile.
func (s *Session) Application() Application { return s.application }

// EncoderState reports the lifecycle state of the encoder sub-state.
func (s *Session) EncoderState() State {
	switch {
	case s.closed:
		return StateDestroyed
	case s.encoder != nil:
		return StateCreated
	}
	return StateAbsent
}

// DecoderState reports the lifecycle state of the decoder sub-state.
func (s *Session) DecoderState() State {
	switch {
	case s.closed:
		return StateDestroyed
	case s.decoder != nil:
		return StateCreated
	}
	return StateAbsent
}

// EnsureEncoder creates the encoder sub-state if it does not exist yet. On
// failure nothing is stored and the native status is returned as a
// [*StatusError]; the next call tries again.
func (s *Session) EnsureEncoder() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.encoder != nil {
		return nil
	}
	enc, st := s.backend.NewEncoder(s.sampleRate, s.channels, s.application)
	if st != StatusOK || enc == nil {
		if st == StatusOK {
			st = StatusInternalError
		}
		s.logger.Debug("opus: encoder creation failed",
			"sample_rate", s.sampleRate,
			"channels", s.channels,
			"application", s.application.String(),
			"status", st.String(),
		)
		return st.Err()
	}
	s.encoder = enc
	s.logger.Debug("opus: encoder created",
		"sample_rate", s.sampleRate,
		"channels", s.channels,
		"application", s.application.String(),
	)
	return nil
}

// EnsureDecoder creates the decoder sub-state if it does not exist yet. It
// behaves like [Session.EnsureEncoder].
func (s *Session) EnsureDecoder() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.decoder != nil {
		return nil
	}
	dec, st := s.backend.NewDecoder(s.sampleRate, s.channels)
	if st != StatusOK || dec == nil {
		if st == StatusOK {
			st = StatusInternalError
		}
		s.logger.Debug("opus: decoder creation failed",
			"sample_rate", s.sampleRate,
			"channels", s.channels,
			"status", st.String(),
		)
		return st.Err()
	}
	s.decoder = dec
	s.logger.Debug("opus: decoder created",
		"sample_rate", s.sampleRate,
		"channels", s.channels,
	)
	return nil
}

// requireEncoder maps a failed [Session.EnsureEncoder] to the fixed
// session-level error.
func (s *Session) requireEncoder() error {
	if err := s.EnsureEncoder(); err != nil {
		if s.closed {
			return err
		}
		return ErrEncoderUnavailable
	}
	return nil
}

func (s *Session) requireDecoder() error {
	if err := s.EnsureDecoder(); err != nil {
		if s.closed {
			return err
		}
		return ErrDecoderUnavailable
	}
	return nil
}

// Encode compresses one frame of PCM into a packet of at most
// [DefaultMaxDataBytes] bytes.
func (s *Session) Encode(pcm []byte) ([]byte, error) {
	return s.EncodeMax(pcm, DefaultMaxDataBytes)
}

// EncodeMax compresses one frame of interleaved 16-bit PCM. The frame size is
// derived from the input length: len(pcm) / 2 / channels samples per channel.
// A trailing partial sample or partial interleaved frame is ignored. Whether
// the resulting frame size is legal is left to the native encoder.
//
// The returned slice holds exactly the encoded bytes. A native result of zero
// bytes is reported as an [*EncodeError], like any negative status.
func (s *Session) EncodeMax(pcm []byte, maxDataBytes int) ([]byte, error) {
	if err := s.requireEncoder(); err != nil {
		return nil, err
	}

	frameSize := 0
	if s.channels > 0 {
		frameSize = len(pcm) / 2 / s.channels
	}
	if maxDataBytes <= 0 {
		return nil, &EncodeError{Status: StatusBadArg, FrameSize: frameSize, MaxDataBytes: maxDataBytes}
	}

	samples := audio.BytesToInt16s(pcm[:frameSize*s.channels*2])
	out := make([]byte, maxDataBytes)

	n := s.encoder.Encode(samples, frameSize, out)
	if n <= 0 {
		return nil, &EncodeError{Status: Status(n), FrameSize: frameSize, MaxDataBytes: maxDataBytes}
	}
	if n > maxDataBytes {
		return nil, &EncodeError{Status: StatusInternalError, FrameSize: frameSize, MaxDataBytes: maxDataBytes}
	}

	packet := make([]byte, n)
	copy(packet, out[:n])
	return packet, nil
}

// Decode decompresses a packet, allowing up to [DefaultMaxFrameSamples]
// samples per channel.
func (s *Session) Decode(packet []byte) ([]byte, error) {
	return s.DecodeMax(packet, DefaultMaxFrameSamples)
}

// DecodeMax decompresses a packet into interleaved 16-bit PCM, allowing up to
// maxFrameSamples samples per channel. Forward error correction is not used.
// An empty packet is rejected as [StatusInvalidPacket]; the packet contents
// are otherwise left for the native decoder to judge.
func (s *Session) DecodeMax(packet []byte, maxFrameSamples int) ([]byte, error) {
	if err := s.requireDecoder(); err != nil {
		return nil, err
	}
	if len(packet) == 0 {
		return nil, &DecodeError{Status: StatusInvalidPacket}
	}
	if maxFrameSamples <= 0 || s.channels <= 0 {
		return nil, &DecodeError{Status: StatusBadArg}
	}

	pcm := make([]int16, maxFrameSamples*s.channels)
	n := s.decoder.Decode(packet, pcm, maxFrameSamples, false)
	if n < 0 {
		return nil, &DecodeError{Status: Status(n)}
	}
	if n > maxFrameSamples {
		return nil, &DecodeError{Status: StatusInternalError}
	}
	return audio.Int16sToBytes(pcm[:n*s.channels]), nil
}

// ApplyEncoderCTL passes a setter request straight to the encoder.
func (s *Session) ApplyEncoderCTL(request, value int) error {
	if err := s.requireEncoder(); err != nil {
		return err
	}
	if st := s.encoder.Ctl(request, value); st != StatusOK {
		return &ControlError{Request: request, Value: value, Status: st}
	}
	return nil
}

// ApplyDecoderCTL passes a setter request straight to the decoder.
func (s *Session) ApplyDecoderCTL(request, value int) error {
	if err := s.requireDecoder(); err != nil {
		return err
	}
	if st := s.decoder.Ctl(request, value); st != StatusOK {
		return &ControlError{Request: request, Value: value, Status: st}
	}
	return nil
}

// EncoderCTL reads the value of a getter request from the encoder.
func (s *Session) EncoderCTL(request int) (int, error) {
	if err := s.requireEncoder(); err != nil {
		return 0, err
	}
	v, st := s.encoder.CtlGet(request)
	if st != StatusOK {
		return 0, &ControlError{Request: request, Status: st}
	}
	return v, nil
}

// DecoderCTL reads the value of a getter request from the decoder.
func (s *Session) DecoderCTL(request int) (int, error) {
	if err := s.requireDecoder(); err != nil {
		return 0, err
	}
	v, st := s.decoder.CtlGet(request)
	if st != StatusOK {
		return 0, &ControlError{Request: request, Status: st}
	}
	return v, nil
}

// SetBitrate sets the target bitrate in bits per second. [Auto] and
// [BitrateMax] are accepted as well. A rejected value yields an error
// matching [ErrInvalidBitrate].
func (s *Session) SetBitrate(bitrate int) error {
	return s.ApplyEncoderCTL(CtlSetBitrate, bitrate)
}

// Bitrate returns the encoder's current bitrate in bits per second.
func (s *Session) Bitrate() (int, error) {
	return s.EncoderCTL(CtlGetBitrate)
}

// Close destroys every native handle the session created. It is safe to call
// more than once; afterwards every operation returns [ErrSessionClosed].
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.encoder != nil {
		s.encoder.Destroy()
		s.encoder = nil
	}
	if s.decoder != nil {
		s.decoder.Destroy()
		s.decoder = nil
	}
	return nil
}
