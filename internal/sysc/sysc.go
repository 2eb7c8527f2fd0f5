// Package sysc is the syscall substrate: thin wrappers that talk to
// the kernel directly through golang.org/x/sys/unix, with no
// allocation on the hot paths and no dependency on anything in the
// "os" package. It exists so that every other package in this module
// — the reservation engine, the ELF mapper, the auxv rewriter — goes
// through one narrow, auditable surface to reach the kernel, the same
// way loader/preloader.c funnels every kernel interaction through its
// wld_* wrappers.
//
// Errors are reported the way raw syscalls do: a failing call returns
// its bare unix.Errno value, not a wrapped Go error, since every
// caller here is on a fatal-or-warn path that doesn't need more than
// the numeric code.
package sysc

import (
	"golang.org/x/sys/unix"
)

// PageSize is resolved once at package initialisation from
// unix.Getpagesize. Components that need page granularity read it
// here rather than calling os.Getpagesize — this package-level
// variable is the one deliberate global, mirroring preloader.c's own
// file-scope `page_size`/`page_mask`.
var PageSize = unix.Getpagesize()

// PageMask is PageSize-1. PageSize is always a power of two on every
// architecture this loader targets.
func PageMask() uintptr { return uintptr(PageSize) - 1 }

// PageRoundDown rounds addr down to the nearest page boundary.
func PageRoundDown(addr uintptr) uintptr { return addr &^ PageMask() }

// PageRoundUp rounds addr up to the nearest page boundary.
func PageRoundUp(addr uintptr) uintptr { return (addr + PageMask()) &^ PageMask() }

// Exit terminates the process immediately with the given status,
// without running deferred calls, finalizers, or signal handlers —
// the equivalent of wld_exit. Never returns.
func Exit(code int) {
	unix.Exit(code)
}

// Write writes buf to fd, retrying on EINTR, and returns the number
// of bytes written. It never allocates beyond what the caller passed
// in.
func Write(fd int, buf []byte) (int, error) {
	var total int
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return total, err
		}
		total += n
		buf = buf[n:]
	}
	return total, nil
}

// Read reads into buf from fd, retrying on EINTR.
func Read(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// Open opens name with the given flags, mirroring wld_open.
func Open(name string, flags int) (int, error) {
	return unix.Open(name, flags, 0)
}

// Close closes fd.
func Close(fd int) error {
	return unix.Close(fd)
}

// Getuid, Geteuid, Getgid, Getegid mirror the identically named
// wld_* wrappers: the preloader needs these to populate AT_UID et al.
// when the incoming auxv is missing them (e.g. set-uid execution).
func Getuid() int  { return unix.Getuid() }
func Geteuid() int { return unix.Geteuid() }
func Getgid() int  { return unix.Getgid() }
func Getegid() int { return unix.Getegid() }
