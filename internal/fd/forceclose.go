package fd

import "syscall"

// forceClose performs a direct system close. closeFuture uses it only
// when the SharedFd has no CloseSubmitter. When a submitter fails to
// submit its close op (ring saturation), that error is reported through
// the close future instead and no direct close happens: the fd stays
// open.
func forceClose(rawFd int) error {
	return syscall.Close(rawFd)
}
