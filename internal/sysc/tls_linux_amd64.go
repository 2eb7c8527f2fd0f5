package sysc

import "golang.org/x/sys/unix"

// archSetFS is ARCH_SET_FS, the arch_prctl(2) subcommand used on
// x86-64 to point %fs at a thread-local-storage segment — the 64-bit
// counterpart to preloader.c's 32-bit set_thread_area(2) use.
const archSetFS = 0x1002

// SetThreadPointer installs addr as the thread pointer (%fs base),
// matching the trampoline-entered step of spec §4.7.
func SetThreadPointer(addr uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_ARCH_PRCTL, archSetFS, addr, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// ClearThreadPointer undoes SetThreadPointer, matching the
// trampoline-exit step's "clear the TLS segment again."
func ClearThreadPointer() error {
	return SetThreadPointer(0)
}
