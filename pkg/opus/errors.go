package opus

import (
	"errors"
	"fmt"
)

// Native status sentinels. Every error produced from a non-OK [Status]
// matches exactly one of these under [errors.Is].
var (
	ErrBadArgument    = errors.New("opus: bad argument")
	ErrBufferTooSmall = errors.New("opus: buffer too small")
	ErrInternal       = errors.New("opus: internal error")
	ErrInvalidPacket  = errors.New("opus: invalid packet")
	ErrUnimplemented  = errors.New("opus: unimplemented request")
	ErrInvalidState   = errors.New("opus: invalid state")
	ErrAllocFail      = errors.New("opus: allocation failed")
	ErrUnknown        = errors.New("opus: unknown error")
)

// Session-level errors raised by [Session] itself rather than the codec.
var (
	// ErrEncoderUnavailable is returned when the encoder sub-state could not
	// be created. The native status is deliberately not attached; call
	// [Session.EnsureEncoder] to obtain it.
	ErrEncoderUnavailable = errors.New("opus: could not create encoder, check the encoder parameters")

	// ErrDecoderUnavailable is the decoder counterpart of [ErrEncoderUnavailable].
	ErrDecoderUnavailable = errors.New("opus: could not create decoder, check the decoder parameters")

	// ErrControlRejected is matched by every [*ControlError].
	ErrControlRejected = errors.New("opus: invalid ctl/value")

	// ErrInvalidBitrate is matched by a [*ControlError] for a rejected
	// bitrate request.
	ErrInvalidBitrate = errors.New("opus: invalid bitrate")

	// ErrSessionClosed is returned by every operation after [Session.Close].
	ErrSessionClosed = fmt.Errorf("opus: session closed: %w", ErrInvalidState)
)

// StatusError reports a non-OK native status, typically from sub-state
// creation.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return "opus: " + e.Status.Description()
}

func (e *StatusError) Unwrap() error {
	return e.Status.sentinel()
}

// EncodeError is returned when the native encoder reports a failure. A
// native result of zero bytes is also treated as a failure and is reported
// with Status == [StatusOK].
type EncodeError struct {
	Status       Status
	FrameSize    int
	MaxDataBytes int
}

func (e *EncodeError) Error() string {
	reason := e.Status.Description()
	if e.Status == StatusOK {
		reason = "encoder wrote no data"
	}
	return fmt.Sprintf("opus: encode: %s (frame size %d, max data bytes %d)", reason, e.FrameSize, e.MaxDataBytes)
}

func (e *EncodeError) Unwrap() error {
	if e.Status == StatusOK {
		return nil
	}
	return e.Status.sentinel()
}

// DecodeError is returned when the native decoder reports a failure. Unlike
// [EncodeError] it carries no frame-size context.
type DecodeError struct {
	Status Status
}

func (e *DecodeError) Error() string {
	return "opus: decode: " + e.Status.Description()
}

func (e *DecodeError) Unwrap() error {
	return e.Status.sentinel()
}

// ControlError is returned when the codec rejects a control request. It does
// not attempt to say whether the request id or the value was at fault.
type ControlError struct {
	Request int
	Value   int
	Status  Status
}

func (e *ControlError) Error() string {
	if e.Request == CtlSetBitrate {
		return fmt.Sprintf("opus: invalid bitrate %d", e.Value)
	}
	return fmt.Sprintf("opus: invalid ctl/value (request %d, value %d)", e.Request, e.Value)
}

// Is reports whether target is [ErrControlRejected], or [ErrInvalidBitrate]
// for a bitrate request.
func (e *ControlError) Is(target error) bool {
	switch target {
	case ErrControlRejected:
		return true
	case ErrInvalidBitrate:
		return e.Request == CtlSetBitrate
	}
	return false
}

func (e *ControlError) Unwrap() error {
	return e.Status.sentinel()
}
