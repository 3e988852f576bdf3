// Package libopus binds [opus.Backend] to the reference libopus C library.
//
// The package requires cgo and a libopus installation discoverable through
// pkg-config (package name "opus").
package libopus

/*
#cgo pkg-config: opus
#include <opus.h>

// opus_encoder_ctl and opus_decoder_ctl are variadic and cannot be called
// from Go directly.

static int opusctl_encoder_set(OpusEncoder *st, int request, opus_int32 value) {
  return opus_encoder_ctl(st, request, value);
}

static int opusctl_encoder_get(OpusEncoder *st, int request, opus_int32 *value) {
  return opus_encoder_ctl(st, request, value);
}

static int opusctl_decoder_set(OpusDecoder *st, int request, opus_int32 value) {
  return opus_decoder_ctl(st, request, value);
}

static int opusctl_decoder_get(OpusDecoder *st, int request, opus_int32 *value) {
  return opus_decoder_ctl(st, request, value);
}
*/
import "C"

import (
	"runtime"
	"unsafe"

	"github.com/MrWong99/opuscodec/pkg/opus"
)

// Compile-time interface assertions.
var (
	_ opus.Backend       = Backend{}
	_ opus.NativeEncoder = (*encoder)(nil)
	_ opus.NativeDecoder = (*decoder)(nil)
)

// Backend creates libopus encoder and decoder states. The zero value is
// ready to use.
type Backend struct{}

// NewSession returns an [opus.Session] backed by libopus.
func NewSession(opts ...opus.Option) *opus.Session {
	return opus.New(Backend{}, opts...)
}

// Version returns the libopus version string, e.g. "libopus 1.5.2".
func Version() string {
	return C.GoString(C.opus_get_version_string())
}

// NewEncoder implements [opus.Backend].
func (Backend) NewEncoder(sampleRate, channels int, app opus.Application) (opus.NativeEncoder, opus.Status) {
	var cerr C.int
	st := C.opus_encoder_create(C.opus_int32(sampleRate), C.int(channels), C.int(app), &cerr)
	if cerr != C.OPUS_OK || st == nil {
		if st != nil {
			C.opus_encoder_destroy(st)
		}
		if cerr == C.OPUS_OK {
			cerr = C.OPUS_ALLOC_FAIL
		}
		return nil, opus.Status(cerr)
	}
	e := &encoder{st: st, channels: channels}
	e.cleanup = runtime.AddCleanup(e, func(st *C.OpusEncoder) {
		C.opus_encoder_destroy(st)
	}, st)
	return e, opus.StatusOK
}

// NewDecoder implements [opus.Backend].
func (Backend) NewDecoder(sampleRate, channels int) (opus.NativeDecoder, opus.Status) {
	var cerr C.int
	st := C.opus_decoder_create(C.opus_int32(sampleRate), C.int(channels), &cerr)
	if cerr != C.OPUS_OK || st == nil {
		if st != nil {
			C.opus_decoder_destroy(st)
		}
		if cerr == C.OPUS_OK {
			cerr = C.OPUS_ALLOC_FAIL
		}
		return nil, opus.Status(cerr)
	}
	d := &decoder{st: st, channels: channels}
	d.cleanup = runtime.AddCleanup(d, func(st *C.OpusDecoder) {
		C.opus_decoder_destroy(st)
	}, st)
	return d, opus.StatusOK
}

// encoder owns one OpusEncoder. The cleanup releases the native state if the
// owner forgets to call Destroy.
type encoder struct {
	st       *C.OpusEncoder
	channels int
	cleanup  runtime.Cleanup
}

func (e *encoder) Encode(pcm []int16, frameSize int, out []byte) int {
	if e.st == nil {
		return int(opus.StatusInvalidState)
	}
	if frameSize <= 0 || len(pcm) < frameSize*e.channels || len(out) == 0 {
		return int(opus.StatusBadArg)
	}
	n := C.opus_encode(e.st,
		(*C.opus_int16)(unsafe.Pointer(&pcm[0])),
		C.int(frameSize),
		(*C.uchar)(unsafe.Pointer(&out[0])),
		C.opus_int32(len(out)),
	)
	runtime.KeepAlive(e)
	return int(n)
}

// Ctl applies a setter. Getter ids need an output pointer and are rejected.
func (e *encoder) Ctl(request, value int) opus.Status {
	if e.st == nil {
		return opus.StatusInvalidState
	}
	if opus.IsGetter(request) {
		return opus.StatusBadArg
	}
	rc := C.opusctl_encoder_set(e.st, C.int(request), C.opus_int32(value))
	runtime.KeepAlive(e)
	return opus.Status(rc)
}

func (e *encoder) CtlGet(request int) (int, opus.Status) {
	if e.st == nil {
		return 0, opus.StatusInvalidState
	}
	if !opus.IsGetter(request) {
		return 0, opus.StatusBadArg
	}
	var v C.opus_int32
	rc := C.opusctl_encoder_get(e.st, C.int(request), &v)
	runtime.KeepAlive(e)
	return int(v), opus.Status(rc)
}

func (e *encoder) Destroy() {
	if e.st == nil {
		return
	}
	e.cleanup.Stop()
	C.opus_encoder_destroy(e.st)
	e.st = nil
}

// decoder owns one OpusDecoder.
type decoder struct {
	st       *C.OpusDecoder
	channels int
	cleanup  runtime.Cleanup
}

func (d *decoder) Decode(data []byte, pcm []int16, frameSize int, fec bool) int {
	if d.st == nil {
		return int(opus.StatusInvalidState)
	}
	if len(data) == 0 || frameSize <= 0 || len(pcm) < frameSize*d.channels {
		return int(opus.StatusBadArg)
	}
	var cfec C.int
	if fec {
		cfec = 1
	}
	n := C.opus_decode(d.st,
		(*C.uchar)(unsafe.Pointer(&data[0])),
		C.opus_int32(len(data)),
		(*C.opus_int16)(unsafe.Pointer(&pcm[0])),
		C.int(frameSize),
		cfec,
	)
	runtime.KeepAlive(d)
	return int(n)
}

func (d *decoder) Ctl(request, value int) opus.Status {
	if d.st == nil {
		return opus.StatusInvalidState
	}
	if opus.IsGetter(request) {
		return opus.StatusBadArg
	}
	rc := C.opusctl_decoder_set(d.st, C.int(request), C.opus_int32(value))
	runtime.KeepAlive(d)
	return opus.Status(rc)
}

func (d *decoder) CtlGet(request int) (int, opus.Status) {
	if d.st == nil {
		return 0, opus.StatusInvalidState
	}
	if !opus.IsGetter(request) {
		return 0, opus.StatusBadArg
	}
	var v C.opus_int32
	rc := C.opusctl_decoder_get(d.st, C.int(request), &v)
	runtime.KeepAlive(d)
	return int(v), opus.Status(rc)
}

func (d *decoder) Destroy() {
	if d.st == nil {
		return
	}
	d.cleanup.Stop()
	C.opus_decoder_destroy(d.st)
	d.st = nil
}
