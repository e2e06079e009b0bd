//go:build !linux || !cgo

package uring

// Sfence and Mfence are no-ops on builds without the cgo-backed asm
// fences. The atomic.Bool CompareAndSwap guarding Unpark's write already
// establishes the happens-before edge the fence is meant to make
// explicit on x86; this fallback keeps the package buildable on
// non-cgo toolchains without changing behavior there.
func Sfence() {}

func Mfence() {}
