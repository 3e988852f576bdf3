// Package mock provides an in-memory implementation of [opus.Backend] for
// unit tests.
//
// The mock records every creation attempt and every call made on the native
// states it hands out, and exposes exported fields that the test can set to
// control return values. It performs no compression: a successful encode
// writes a packet whose bytes are derived from the frame size, and a
// successful decode fills the output with silence.
//
// Typical usage:
//
//	b := &mock.Backend{EncoderStatus: opus.StatusBadArg}
//	s := opus.New(b)
//	_, err := s.Encode(pcm) // err == opus.ErrEncoderUnavailable
//	_ = b.EncoderCreates     // 1
package mock

import (
	"sync"

	"github.com/MrWong99/opuscodec/pkg/opus"
)

// Backend is a mock implementation of [opus.Backend].
// Set the exported Status/Func fields before use; inspect the recorded
// fields after.
type Backend struct {
	mu sync.Mutex

	// EncoderStatus is returned by NewEncoder. Non-OK values make creation
	// fail.
	EncoderStatus opus.Status

	// DecoderStatus is returned by NewDecoder.
	DecoderStatus opus.Status

	// EncodeFunc, when set, replaces the default encode behaviour of every
	// encoder handed out.
	EncodeFunc func(pcm []int16, frameSize int, out []byte) int

	// DecodeFunc, when set, replaces the default decode behaviour of every
	// decoder handed out.
	DecodeFunc func(data []byte, pcm []int16, frameSize int, fec bool) int

	// CtlStatus is returned by every Ctl and CtlGet call when non-zero.
	CtlStatus opus.Status

	// EncoderCreates counts NewEncoder calls, successful or not.
	EncoderCreates int

	// DecoderCreates counts NewDecoder calls, successful or not.
	DecoderCreates int

	// Encoders holds every encoder successfully created, in order.
	Encoders []*Encoder

	// Decoders holds every decoder successfully created, in order.
	Decoders []*Decoder
}

// NewEncoder implements [opus.Backend].
func (b *Backend) NewEncoder(sampleRate, channels int, app opus.Application) (opus.NativeEncoder, opus.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.EncoderCreates++
	if b.EncoderStatus != opus.StatusOK {
		return nil, b.EncoderStatus
	}
	enc := &Encoder{
		backend:     b,
		SampleRate:  sampleRate,
		Channels:    channels,
		Application: app,
		values:      map[int]int{opus.CtlGetBitrate: opus.Auto},
	}
	b.Encoders = append(b.Encoders, enc)
	return enc, opus.StatusOK
}

// NewDecoder implements [opus.Backend].
func (b *Backend) NewDecoder(sampleRate, channels int) (opus.NativeDecoder, opus.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DecoderCreates++
	if b.DecoderStatus != opus.StatusOK {
		return nil, b.DecoderStatus
	}
	dec := &Decoder{
		backend:    b,
		SampleRate: sampleRate,
		Channels:   channels,
		values:     map[int]int{},
	}
	b.Decoders = append(b.Decoders, dec)
	return dec, opus.StatusOK
}

// getterFor returns the getter request id paired with a setter.
func getterFor(setter int) int {
	if setter == opus.CtlSetGain {
		return opus.CtlGetGain
	}
	return setter + 1
}

func (b *Backend) ctlStatus() opus.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.CtlStatus
}

// ─── Encoder ─────────────────────────────────────────────────────────────────

// Encoder is the mock encoder state returned by [Backend.NewEncoder].
type Encoder struct {
	backend *Backend
	values  map[int]int

	// SampleRate, Channels and Application record the creation parameters.
	SampleRate  int
	Channels    int
	Application opus.Application

	// FrameSizes records the frameSize argument of every Encode call.
	FrameSizes []int

	// OutCaps records len(out) of every Encode call.
	OutCaps []int

	// Ctls records every setter request applied, in order.
	Ctls [][2]int

	// Destroyed counts Destroy calls.
	Destroyed int
}

// Encode implements [opus.NativeEncoder]. By default it writes
// min(frameSize/10+1, len(out)) bytes, each equal to the byte value of
// frameSize, and reports [opus.StatusBadArg] for an empty frame.
func (e *Encoder) Encode(pcm []int16, frameSize int, out []byte) int {
	e.FrameSizes = append(e.FrameSizes, frameSize)
	e.OutCaps = append(e.OutCaps, len(out))
	if fn := e.backend.EncodeFunc; fn != nil {
		return fn(pcm, frameSize, out)
	}
	if frameSize <= 0 || len(pcm) < frameSize*e.Channels {
		return int(opus.StatusBadArg)
	}
	n := min(frameSize/10+1, len(out))
	for i := range n {
		out[i] = byte(frameSize)
	}
	return n
}

// Ctl implements [opus.NativeEncoder]. Setter values are stored and read
// back by the matching getter.
func (e *Encoder) Ctl(request, value int) opus.Status {
	e.Ctls = append(e.Ctls, [2]int{request, value})
	if st := e.backend.ctlStatus(); st != opus.StatusOK {
		return st
	}
	if opus.IsGetter(request) {
		return opus.StatusBadArg
	}
	e.values[getterFor(request)] = value
	return opus.StatusOK
}

// CtlGet implements [opus.NativeEncoder].
func (e *Encoder) CtlGet(request int) (int, opus.Status) {
	if st := e.backend.ctlStatus(); st != opus.StatusOK {
		return 0, st
	}
	v, ok := e.values[request]
	if !ok {
		return 0, opus.StatusUnimplemented
	}
	return v, opus.StatusOK
}

// Destroy implements [opus.NativeEncoder].
func (e *Encoder) Destroy() { e.Destroyed++ }

// ─── Decoder ─────────────────────────────────────────────────────────────────

// Decoder is the mock decoder state returned by [Backend.NewDecoder].
type Decoder struct {
	backend *Backend
	values  map[int]int

	// SampleRate and Channels record the creation parameters.
	SampleRate int
	Channels   int

	// Packets records a copy of every packet passed to Decode.
	Packets [][]byte

	// FrameSizes records the frameSize argument of every Decode call.
	FrameSizes []int

	// PCMCaps records len(pcm) of every Decode call.
	PCMCaps []int

	// FEC records the fec argument of every Decode call.
	FEC []bool

	// Ctls records every setter request applied, in order.
	Ctls [][2]int

	// Destroyed counts Destroy calls.
	Destroyed int
}

// Decode implements [opus.NativeDecoder]. By default it reports
// min(960, frameSize) samples per channel of silence, or
// [opus.StatusInvalidPacket] if the first byte is 0xff.
func (d *Decoder) Decode(data []byte, pcm []int16, frameSize int, fec bool) int {
	d.Packets = append(d.Packets, append([]byte(nil), data...))
	d.FrameSizes = append(d.FrameSizes, frameSize)
	d.PCMCaps = append(d.PCMCaps, len(pcm))
	d.FEC = append(d.FEC, fec)
	if fn := d.backend.DecodeFunc; fn != nil {
		return fn(data, pcm, frameSize, fec)
	}
	if len(data) > 0 && data[0] == 0xff {
		return int(opus.StatusInvalidPacket)
	}
	n := min(960, frameSize)
	clear(pcm[:n*d.Channels])
	return n
}

// Ctl implements [opus.NativeDecoder].
func (d *Decoder) Ctl(request, value int) opus.Status {
	d.Ctls = append(d.Ctls, [2]int{request, value})
	if st := d.backend.ctlStatus(); st != opus.StatusOK {
		return st
	}
	if opus.IsGetter(request) {
		return opus.StatusBadArg
	}
	d.values[getterFor(request)] = value
	return opus.StatusOK
}

// CtlGet implements [opus.NativeDecoder].
func (d *Decoder) CtlGet(request int) (int, opus.Status) {
	if st := d.backend.ctlStatus(); st != opus.StatusOK {
		return 0, st
	}
	v, ok := d.values[request]
	if !ok {
		return 0, opus.StatusUnimplemented
	}
	return v, opus.StatusOK
}

// Destroy implements [opus.NativeDecoder].
func (d *Decoder) Destroy() { d.Destroyed++ }
