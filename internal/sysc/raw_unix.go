package sysc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapNoReserve is MAP_NORESERVE in Linux, and has no effect (is simply
// unset) on hosts that don't define it — mirroring the original's
//
//	#ifndef MAP_NORESERVE
//	#define MAP_NORESERVE 0
//	#endif
const mapNoReserve = mapNoReservePlatform

// unsafeSlice turns a raw address and length into a byte slice, for
// handing to the golang.org/x/sys/unix calls that want one. Every
// caller here already owns the memory (it requested the mapping, or
// the kernel handed the address back to it), so this is not aliasing
// Go-managed memory of unknown provenance.
func unsafeSlice(addr uintptr, length uintptr) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length)) //nolint:govet
}

// ReadMem returns a view of n bytes of process memory starting at
// addr, for code that needs to read data out of an image this
// process has already mapped into its own address space (the symbol
// table and dynamic section walks). It is a thin, named escape hatch
// around unsafeSlice for use outside this package.
func ReadMem(addr uintptr, n int) []byte {
	return unsafeSlice(addr, uintptr(n))
}

// Zero writes length zero bytes starting at addr. Used by the ELF
// mapper's tail-zeroing step, which must not assume the destination
// is Go-managed memory.
func Zero(addr uintptr, length uintptr) {
	b := unsafeSlice(addr, length)
	for i := range b {
		b[i] = 0
	}
}

// rawMmap and rawMmapFile go straight to the mmap syscall with an
// explicit address argument, which golang.org/x/sys/unix.Mmap does
// not expose (it always lets the kernel choose). This is the one
// place in the loader that must bypass the higher-level wrapper,
// exactly as preloader.c's wld_mmap is the one hand-written syscall
// stub that takes a fixed address.
func rawMmap(addr, length uintptr, prot, flags int) (uintptr, error) {
	return rawMmapFile(addr, length, prot, flags, -1, 0)
}

func rawMmapFile(addr, length uintptr, prot, flags int, fd int, off int64) (uintptr, error) {
	r1, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, length,
		uintptr(prot), uintptr(flags), uintptr(fd), uintptr(off))
	if errno != 0 {
		return 0, errno
	}
	return r1, nil
}

// rawMincore goes straight to the mincore syscall: golang.org/x/sys/unix
// does not expose a Mincore wrapper.
func rawMincore(addr, length uintptr, vec []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_MINCORE, addr, length,
		uintptr(unsafe.Pointer(&vec[0])))
	if errno != 0 {
		return errno
	}
	return nil
}
