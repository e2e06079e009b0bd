// Package ioerr provides the structured error type shared by every runtime
// component: the driver, the op registry, the timer wheel and the
// scheduler all report failures through it so callers get one error
// shape regardless of which layer raised it.
package ioerr

import (
	"fmt"
	"strings"
	"syscall"
)

// Code is a high-level error category, independent of the underlying
// errno (if any).
type Code string

const (
	// CodeSubmissionRejected means the submission ring was saturated and
	// a non-blocking submission was requested.
	CodeSubmissionRejected Code = "submission rejected"
	// CodeKernelCompletion means the kernel returned a negative result
	// for a completed operation.
	CodeKernelCompletion Code = "kernel completion error"
	// CodeCancelled means the operation was cancelled, by the caller or
	// by the future being dropped.
	CodeCancelled Code = "cancelled"
	// CodeInvalidArgument means the caller supplied an argument the
	// runtime cannot act on (empty address list, unsupported option...).
	CodeInvalidArgument Code = "invalid argument"
	// CodeResourceExhausted means a slot, fd or timer could not be
	// allocated.
	CodeResourceExhausted Code = "resource exhausted"
	// CodeFatal marks a corrupted internal invariant (duplicate slot
	// completion, unknown user-data). Callers should treat this as
	// unrecoverable; the runtime aborts rather than returning it to
	// ordinary callers, but it is still a Code so panics can carry one.
	CodeFatal Code = "fatal runtime invariant violation"
)

// Error is the structured error returned by every runtime-facing
// operation. The zero-value fields (SlotIndex == 0, TaskID == 0, Errno
// == 0) are omitted from the formatted message.
type Error struct {
	Op        string        // operation that failed, e.g. "submit", "park_timeout"
	SlotIndex int           // completion slot index, -1 if not applicable
	TaskID    uint64        // scheduler task id, 0 if not applicable
	Code      Code          // high-level error category
	Errno     syscall.Errno // kernel errno, 0 if not applicable
	Msg       string        // human-readable message
	Inner     error         // wrapped error
}

// New builds an Error with no slot/task/errno context.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, SlotIndex: -1, Code: code, Msg: msg}
}

// WithErrno builds an Error carrying a kernel errno.
func WithErrno(op string, code Code, errno syscall.Errno) *Error {
	return &Error{Op: op, SlotIndex: -1, Code: code, Errno: errno, Msg: errno.Error()}
}

// WithSlot builds an Error scoped to a completion slot.
func WithSlot(op string, slot int, code Code, msg string) *Error {
	return &Error{Op: op, SlotIndex: slot, Code: code, Msg: msg}
}

// Wrap builds an Error that wraps an existing error.
func Wrap(op string, code Code, inner error) *Error {
	return &Error{Op: op, SlotIndex: -1, Code: code, Msg: inner.Error(), Inner: inner}
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.SlotIndex > 0 {
		parts = append(parts, fmt.Sprintf("slot=%d", e.SlotIndex))
	}
	if e.TaskID != 0 {
		parts = append(parts, fmt.Sprintf("task=%d", e.TaskID))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("ioruntime: %s (%s)", msg, strings.Join(parts, " "))
	}
	return fmt.Sprintf("ioruntime: %s", msg)
}

// Unwrap supports errors.Is/As against the wrapped error.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison against another *Error by Code, so
// callers can write errors.Is(err, ioerr.New("", ioerr.CodeCancelled, "")).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}
