package sysc

import (
	"golang.org/x/sys/unix"
)

// MapFixedNoReplace requests a private, anonymous, no-access mapping
// at exactly addr, length bytes long. It corresponds to preloader.c's
//
//	wld_mmap(addr, len, PROT_NONE, MAP_FIXED|MAP_PRIVATE|MAP_ANON|MAP_NORESERVE, -1, 0)
//
// The call goes straight to SYS_MMAP through rawMmap. On the 64-bit
// hosts this loader targets that is the only mmap syscall, so unlike
// the hand-written assembly in the original this wrapper has no
// fallback to a legacy mmap syscall.
func MapFixedNoReplace(addr uintptr, length uintptr) (uintptr, error) {
	return rawMmap(addr, length, unix.PROT_NONE,
		unix.MAP_FIXED|unix.MAP_PRIVATE|unix.MAP_ANON|mapNoReserve)
}

// MapAnon requests an anonymous mapping, letting the kernel choose
// the address if addr is 0.
func MapAnon(addr uintptr, length uintptr, prot int) (uintptr, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANON
	if addr != 0 {
		flags |= unix.MAP_FIXED
	}
	return rawMmap(addr, length, prot, flags)
}

// MapFile maps length bytes of fd at file offset off into addr (or
// anywhere the kernel chooses, if fixed is false), with the given
// protection. It is the Go equivalent of the original's
// wld_mmap(addr, len, prot, MAP_FIXED|MAP_COPY|MAP_FILE, fd, off).
func MapFile(addr uintptr, length uintptr, prot int, fd int, off int64, fixed bool) (uintptr, error) {
	flags := unix.MAP_PRIVATE
	if fixed {
		flags |= unix.MAP_FIXED
	}
	return rawMmapFile(addr, length, prot, flags, fd, off)
}

// Munmap releases a mapping previously established by this package.
func Munmap(addr uintptr, length uintptr) error {
	b := unsafeSlice(addr, length)
	return unix.Munmap(b)
}

// Mprotect changes the protection of an existing mapping in place.
func Mprotect(addr uintptr, length uintptr, prot int) error {
	b := unsafeSlice(addr, length)
	return unix.Mprotect(b, prot)
}

// Mincore reports, one byte per page, whether each page of the range
// [addr, addr+length) is resident. It is used only by the Mach-O
// variant's is_region_empty probe, on hosts that ignore the address
// hint passed to mmap.
func Mincore(addr uintptr, length uintptr, vec []byte) error {
	return rawMincore(addr, length, vec)
}
