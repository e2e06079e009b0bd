package uring

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// opSupportedFlag is IO_URING_OP_SUPPORTED from the kernel uapi.
const opSupportedFlag = 1 << 0

const maxProbeOps = 64

// probeOp mirrors struct io_uring_probe_op.
type probeOp struct {
	op    uint8
	resv  uint8
	flags uint16
	resv2 uint32
}

// probeHeader mirrors struct io_uring_probe's fixed header, followed in
// memory by ops[maxProbeOps] (the kernel writes at most last_op+1 of
// them; the rest stay zeroed).
type probeHeader struct {
	lastOp uint8
	opsLen uint8
	resv   uint16
	resv2  [3]uint32
}

type rawProbe struct {
	probeHeader
	ops [maxProbeOps]probeOp
}

// Features records which kernel opcodes IORING_REGISTER_PROBE reported
// as supported for a given ring, resolving the "kernel-version gating"
// open question by checking reality once at build time instead of
// hardcoding a minimum kernel version.
type Features struct {
	supported map[uint8]bool
}

// Supports reports whether opcode op was marked supported by the probe.
func (f Features) Supports(op uint8) bool {
	if f.supported == nil {
		return false
	}
	return f.supported[op]
}

// Probe issues IORING_REGISTER_PROBE against ringFd and returns the
// resulting Features. Grounded on the raw io_uring_register syscall
// path shown in the pack's raw-syscall reference rather than routed
// through giouring, since probing is a one-shot setup call with no
// ongoing ring-state interaction.
func Probe(ringFd int) (Features, error) {
	var raw rawProbe
	_, _, errno := unix.Syscall6(
		unix.SYS_IO_URING_REGISTER,
		uintptr(ringFd),
		uintptr(registerProbe),
		uintptr(unsafe.Pointer(&raw)),
		uintptr(maxProbeOps),
		0, 0,
	)
	if errno != 0 {
		return Features{}, errno
	}

	supported := make(map[uint8]bool, raw.opsLen)
	n := int(raw.opsLen)
	if n > maxProbeOps {
		n = maxProbeOps
	}
	for i := 0; i < n; i++ {
		if raw.ops[i].flags&opSupportedFlag != 0 {
			supported[raw.ops[i].op] = true
		}
	}
	return Features{supported: supported}, nil
}

const registerProbe = 8 // IORING_REGISTER_PROBE
