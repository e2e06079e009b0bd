package op

import "github.com/behrlich/ioruntime/internal/sqe"

// OpAble is implemented by every kernel operation payload: given a
// submission entry from the ring, fill it in. The registry sets
// UserData itself after BuildSubmissionEntry returns, so implementations
// never need to know their own slot index.
type OpAble interface {
	BuildSubmissionEntry(e *sqe.Entry)
}

// Submitter is the minimal surface op needs from whatever owns the
// kernel ring. It is declared here, at the consumer, rather than in
// internal/uring, so this package never imports uring: the driver
// implements Submitter and is handed to SubmitWith by the caller,
// keeping the dependency edge one-directional (uring -> op, never
// op -> uring).
type Submitter interface {
	// Submit arms one submission queue entry via build, which must call
	// SetUserData itself. Submit flushes and retries once if the ring is
	// momentarily full; persistent saturation is returned as an error,
	// matching try_submit_with's non-blocking contract.
	Submit(build func(e *sqe.Entry)) error
	// SubmitCancel arms an AsyncCancel targeting the submission that
	// carried targetUserData.
	SubmitCancel(targetUserData uint64) error
}
