package uring

// Kernel opcode numbers for Probe bookkeeping, matching the ABI order
// documented in include/uapi/linux/io_uring.h. Only the opcodes this
// runtime's kernel contract requires are named; giouring's PrepareXxx
// calls already encode the opcode for submission, these constants exist
// solely so Probe results can be checked against them.
const (
	OpNop         uint8 = 0
	OpReadv       uint8 = 1
	OpWritev      uint8 = 2
	OpFsync       uint8 = 3
	OpPollAdd     uint8 = 6
	OpTimeout     uint8 = 11
	OpAccept      uint8 = 13
	OpAsyncCancel uint8 = 14
	OpConnect     uint8 = 16
	OpOpenat      uint8 = 18
	OpClose       uint8 = 19
	OpRead        uint8 = 22
	OpWrite       uint8 = 23
	OpSend        uint8 = 26
	OpRecv        uint8 = 27
	OpSplice      uint8 = 30
)
