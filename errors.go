package sgxnet

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Error is the structured error type returned by every operation in this
// package. It carries enough context to log and to classify programmatically
// via Code, while still unwrapping to the underlying errno when one exists.
type Error struct {
	Op    string    // Operation that failed (e.g., "register", "accept", "read")
	Token uint64    // Token of the source involved, if any
	Code  ErrorCode // High-level error category
	Errno unix.Errno
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Token != 0 {
		parts = append(parts, fmt.Sprintf("token=%d", e.Token))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("sgxnet: %s (%s)", msg, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("sgxnet: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is a high-level, stable error category. Prefer matching on Code
// (via IsCode or errors.Is against a sentinel) over string-matching Msg.
type ErrorCode string

const (
	ErrCodeAlreadyRegistered ErrorCode = "already registered"
	ErrCodeNotRegistered     ErrorCode = "not registered"
	ErrCodeUnsupportedMode   ErrorCode = "unsupported poll mode"
	ErrCodeWouldBlock        ErrorCode = "would block"
	ErrCodeClosed            ErrorCode = "connection closed"
	ErrCodeInvalidArgument   ErrorCode = "invalid argument"
	ErrCodeCanceled          ErrorCode = "canceled"
	ErrCodeIOError           ErrorCode = "I/O error"
	ErrCodeTimeout           ErrorCode = "timeout"
	ErrCodeWriteZero         ErrorCode = "write returned zero"
)

// Sentinel errors matched with errors.Is. These carry no Token/Op context of
// their own; construct via the New*Error helpers when context is available
// and compare the resulting *Error's Code, or wrap one of these directly.
var (
	// ErrAlreadyRegistered is returned by Registry.Register when the source
	// already has a live registration on this (or another) registry.
	ErrAlreadyRegistered = &Error{Code: ErrCodeAlreadyRegistered, Msg: "source is already registered"}

	// ErrNotRegistered is returned by Reregister/Deregister when the source
	// has no live registration.
	ErrNotRegistered = &Error{Code: ErrCodeNotRegistered, Msg: "source is not registered"}

	// ErrUnsupportedPollMode is returned when a caller asks for oneshot or
	// level-triggered delivery. Only edge-triggered delivery is implemented;
	// callers that need oneshot/level semantics must emulate them by
	// reregistering after each readiness notification.
	ErrUnsupportedPollMode = &Error{Code: ErrCodeUnsupportedMode, Msg: "oneshot and level-triggered events are not supported in SGX"}

	// ErrWouldBlock mirrors unix.EWOULDBLOCK/EAGAIN for callers that probe
	// readiness with a non-blocking read/write before registering interest.
	ErrWouldBlock = &Error{Code: ErrCodeWouldBlock, Errno: unix.EWOULDBLOCK, Msg: "operation would block"}
)

func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

func NewTokenError(op string, token uint64, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Token: token, Code: code, Msg: msg}
}

func NewErrnoError(op string, errno unix.Errno) *Error {
	return &Error{Op: op, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error()}
}

// WrapError attaches op context to inner, mapping syscall errnos to a Code
// along the way. A nil inner returns nil.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if se, ok := inner.(*Error); ok {
		return &Error{Op: op, Token: se.Token, Code: se.Code, Errno: se.Errno, Msg: se.Msg, Inner: se.Inner}
	}
	// net's errors wrap the standard "syscall" package's Errno. On the
	// platforms x/sys/unix supports, unix.Errno is an alias of that type,
	// so this branch and the one below match the same errors; either way
	// mapErrnoToCode sees the errno instead of falling through to
	// ErrCodeIOError.
	var sysErrno syscall.Errno
	if errors.As(inner, &sysErrno) {
		errno := unix.Errno(sysErrno)
		return &Error{Op: op, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	var errno unix.Errno
	if errors.As(inner, &errno) {
		return &Error{Op: op, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Code: ErrCodeIOError, Msg: inner.Error(), Inner: inner}
}

func mapErrnoToCode(errno unix.Errno) ErrorCode {
	switch errno {
	case unix.EAGAIN:
		return ErrCodeWouldBlock
	case unix.ECONNRESET, unix.EPIPE, unix.ENOTCONN, unix.ECONNABORTED:
		return ErrCodeClosed
	case unix.EINVAL:
		return ErrCodeInvalidArgument
	case unix.ETIMEDOUT:
		return ErrCodeTimeout
	case unix.ECANCELED:
		return ErrCodeCanceled
	default:
		return ErrCodeIOError
	}
}

// IsCode reports whether err is (or wraps) an *Error with the given Code.
func IsCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsClosed reports whether err represents a peer-closed connection, the
// classification a Source uses to decide whether to surface a ReadClosed
// event instead of a ReadError.
func IsClosed(err error) bool {
	return IsCode(err, ErrCodeClosed) || errors.Is(err, io.EOF)
}
