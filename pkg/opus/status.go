package opus

import "fmt"

// Status is a result code reported by the native codec. Non-negative values
// returned from encode and decode calls are byte or sample counts; everything
// below zero is one of the failures enumerated here.
type Status int

const (
	StatusOK             Status = 0
	StatusBadArg         Status = -1
	StatusBufferTooSmall Status = -2
	StatusInternalError  Status = -3
	StatusInvalidPacket  Status = -4
	StatusUnimplemented  Status = -5
	StatusInvalidState   Status = -6
	StatusAllocFail      Status = -7
)

// Description returns the human-readable explanation of s. Codes outside the
// known enumeration map to a generic "unknown" description.
func (s Status) Description() string {
	switch s {
	case StatusOK:
		return "success"
	case StatusBadArg:
		return "one or more invalid/out of range arguments"
	case StatusBufferTooSmall:
		return "not enough bytes allocated in the buffer"
	case StatusInternalError:
		return "an internal error was detected"
	case StatusInvalidPacket:
		return "the compressed data passed is corrupted"
	case StatusUnimplemented:
		return "invalid/unsupported request number"
	case StatusInvalidState:
		return "an encoder or decoder structure is invalid or already freed"
	case StatusAllocFail:
		return "memory allocation has failed"
	default:
		return "unknown opus error"
	}
}

// String implements [fmt.Stringer].
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBadArg:
		return "BAD_ARG"
	case StatusBufferTooSmall:
		return "BUFFER_TOO_SMALL"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	case StatusInvalidPacket:
		return "INVALID_PACKET"
	case StatusUnimplemented:
		return "UNIMPLEMENTED"
	case StatusInvalidState:
		return "INVALID_STATE"
	case StatusAllocFail:
		return "ALLOC_FAIL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Err returns nil for [StatusOK] and a [*StatusError] otherwise.
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	return &StatusError{Status: s}
}

// sentinel returns the package-level error value that s matches under
// [errors.Is]. It is total over every non-OK status.
func (s Status) sentinel() error {
	switch s {
	case StatusBadArg:
		return ErrBadArgument
	case StatusBufferTooSmall:
		return ErrBufferTooSmall
	case StatusInternalError:
		return ErrInternal
	case StatusInvalidPacket:
		return ErrInvalidPacket
	case StatusUnimplemented:
		return ErrUnimplemented
	case StatusInvalidState:
		return ErrInvalidState
	case StatusAllocFail:
		return ErrAllocFail
	default:
		return ErrUnknown
	}
}
