package machoimage

import (
	"debug/macho"
	"encoding/binary"
)

// LC_MAIN and LC_UNIXTHREAD are not exposed as typed structs by
// debug/macho (it stops at Segment/Symtab/Dysymtab), so this package
// parses their raw bytes directly, the way preloader.c's
// get_entry_point walks the raw load_command array.
const (
	lcMain       = 0x28 | 0x80000000 // LC_MAIN, LC_REQ_DYLD
	lcUnixthread = 0x5
)

func cmdHeader(raw macho.LoadBytes) (cmd, size uint32) {
	if len(raw) < 8 {
		return 0, 0
	}
	return binary.LittleEndian.Uint32(raw[0:4]), binary.LittleEndian.Uint32(raw[4:8])
}

// tryMain returns the entry-point file offset from an LC_MAIN command
// (entryoff is the field immediately after the 8-byte cmd/cmdsize
// header), or ok=false if raw isn't an LC_MAIN.
func tryMain(raw macho.LoadBytes) (uintptr, bool) {
	cmd, _ := cmdHeader(raw)
	if cmd != lcMain || len(raw) < 16 {
		return 0, false
	}
	entryoff := binary.LittleEndian.Uint64(raw[8:16])
	return uintptr(entryoff), true
}

// tryUnixThread extracts the instruction-pointer field from an
// LC_UNIXTHREAD's architecture-specific thread state. Only the two
// CPU types this loader targets are handled; others fall through as
// not-found, matching the original's per-arch #ifdef ladder.
func tryUnixThread(raw macho.LoadBytes, cpu macho.Cpu) (uintptr, bool) {
	cmd, _ := cmdHeader(raw)
	if cmd != lcUnixthread {
		return 0, false
	}
	// Layout after the 8-byte header: flavor (u32), count (u32), then
	// the flavor-specific state struct.
	if len(raw) < 16 {
		return 0, false
	}
	state := raw[16:]
	switch cpu {
	case macho.CpuAmd64:
		// x86_thread_state64_t: rip is the 17th 8-byte register
		// (rax,rbx,rcx,rdx,rdi,rsi,rbp,rsp,r8-r15,rip,...).
		const ripIndex = 16
		off := ripIndex * 8
		if len(state) < off+8 {
			return 0, false
		}
		return uintptr(binary.LittleEndian.Uint64(state[off : off+8])), true
	case macho.CpuArm64:
		// arm_thread_state64_t: pc is register slot 32 (after x0-x28, fp, lr, sp).
		const pcIndex = 32
		off := pcIndex * 8
		if len(state) < off+8 {
			return 0, false
		}
		return uintptr(binary.LittleEndian.Uint64(state[off : off+8])), true
	default:
		return 0, false
	}
}
