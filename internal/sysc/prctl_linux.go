package sysc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// SetProcessName sets the kernel's comm field (PR_SET_NAME) to name,
// truncated to 15 bytes plus the terminator as the kernel requires.
// Returns false if the host kernel doesn't support it, matching the
// original's "if supported" phrasing — this is not a fatal condition.
func SetProcessName(name string) bool {
	b := make([]byte, 16)
	copy(b[:15], name)
	_, _, errno := unix.Syscall(unix.SYS_PRCTL, unix.PR_SET_NAME,
		uintptr(unsafe.Pointer(&b[0])), 0)
	return errno == 0
}
