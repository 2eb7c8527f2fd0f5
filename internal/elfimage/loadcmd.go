package elfimage

import (
	"debug/elf"
	"fmt"

	"lowmem.dev/preload/internal/locerr"
	"lowmem.dev/preload/internal/sysc"
)

// LoadCmd is the transient per-PT_LOAD record spec §3 describes:
// the page-aligned file-backed extent, the exact data end, the full
// allocated end including BSS, the page-aligned file offset and the
// translated protection.
type LoadCmd struct {
	MapStart uintptr
	MapEnd   uintptr
	DataEnd  uintptr
	AllocEnd uintptr
	Offset   uintptr
	Prot     int
}

// DynInfo records where the PT_DYNAMIC segment lives: its (pre-bias)
// virtual address and its size in memory.
type DynInfo struct {
	Vaddr uintptr
	Size  uintptr
}

// collect walks ph, building the LoadCmd list and recording the
// PT_DYNAMIC, PT_PHDR and PT_INTERP offsets, the Go analogue of
// map_so_lib's single program-header loop.
type collected struct {
	loads      []LoadCmd
	dyn        DynInfo
	phdrVaddr  uintptr
	interpOff  uintptr
	hasInterp  bool
	hasPhdr    bool
}

func collect(ph []ProgHeader) (collected, error) {
	var c collected
	for i, p := range ph {
		switch elf.ProgType(p.Type) {
		case elf.PT_DYNAMIC:
			c.dyn = DynInfo{Vaddr: uintptr(p.Vaddr), Size: uintptr(p.Memsz)}
		case elf.PT_PHDR:
			c.phdrVaddr = uintptr(p.Vaddr)
			c.hasPhdr = true
		case elf.PT_INTERP:
			c.interpOff = uintptr(p.Vaddr)
			c.hasInterp = true
		case elf.PT_LOAD:
			align := uintptr(p.Align)
			if align == 0 {
				align = uintptr(sysc.PageSize)
			}
			if align%uintptr(sysc.PageSize) != 0 {
				return c, locerr.Segment(fmt.Errorf("non-page-aligned PT_LOAD alignment %d", align), i)
			}
			vaddr := uintptr(p.Vaddr)
			filesz := uintptr(p.Filesz)
			memsz := uintptr(p.Memsz)
			off := uintptr(p.Off)
			lc := LoadCmd{
				MapStart: pageRoundDown(vaddr, align),
				MapEnd:   pageRoundUp(vaddr+filesz, uintptr(sysc.PageSize)),
				DataEnd:  vaddr + filesz,
				AllocEnd: vaddr + memsz,
				Offset:   pageRoundDown(off, align),
				Prot:     progFlags(p.Flags),
			}
			c.loads = append(c.loads, lc)
		case elf.PT_TLS:
			// Explicitly skipped; the real interpreter handles TLS.
		default:
			// Ignored.
		}
	}
	if len(c.loads) == 0 {
		return c, fmt.Errorf("no PT_LOAD segments")
	}
	return c, nil
}

func progFlags(flags uint32) int {
	prot := 0
	if flags&uint32(elf.PF_R) != 0 {
		prot |= protRead
	}
	if flags&uint32(elf.PF_W) != 0 {
		prot |= protWrite
	}
	if flags&uint32(elf.PF_X) != 0 {
		prot |= protExec
	}
	return prot
}

func pageRoundDown(v, align uintptr) uintptr { return v &^ (align - 1) }
func pageRoundUp(v, align uintptr) uintptr   { return (v + align - 1) &^ (align - 1) }
