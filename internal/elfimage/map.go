package elfimage

import (
	"debug/elf"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"lowmem.dev/preload/internal/locerr"
	"lowmem.dev/preload/internal/reserve"
	"lowmem.dev/preload/internal/sysc"
)

const (
	protRead  = unix.PROT_READ
	protWrite = unix.PROT_WRITE
	protExec  = unix.PROT_EXEC
	protNone  = unix.PROT_NONE
)

// LinkMap describes one loaded ELF image, the Go analogue of the
// dynamic linker's internal struct of the same name: load bias,
// program-header location, entry point, interpreter path offset, the
// dynamic section and the mapped extent. Immutable once returned by
// Map.
type LinkMap struct {
	Bias       uintptr
	Phdr       uintptr
	Phnum      int
	Entry      uintptr
	InterpOff  uintptr
	HasInterp  bool
	Dyn        uintptr
	DynSize    uintptr
	MapStart   uintptr
	MapEnd     uintptr
}

// Map opens name, validates it, walks its program headers and maps
// every PT_LOAD segment, choosing the ET_DYN or ET_EXEC strategy, then
// returns the resulting LinkMap. loaderExtent names the loader's own
// mapped range so a fixed-address collision can be rejected.
func Map(name string, loaderExtent reserve.Range) (*LinkMap, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, locerr.Wrap(err, name)
	}
	defer f.Close()

	id, err := Identify(f)
	if err != nil {
		return nil, locerr.Wrap(err, name)
	}
	ph, err := ReadProgramHeaders(f, id)
	if err != nil {
		return nil, locerr.Wrap(err, name)
	}
	c, err := collect(ph)
	if err != nil {
		return nil, locerr.Wrap(err, name)
	}

	var bias uintptr
	switch id.Type {
	case uint16(typeDyn):
		bias, err = mapDyn(f, c)
	case uint16(typeExec):
		bias, err = mapExec(f, c, loaderExtent)
	default:
		err = fmt.Errorf("unsupported e_type %d", id.Type)
	}
	if err != nil {
		return nil, locerr.Wrap(err, name)
	}

	for i := range c.loads {
		if err := zeroTail(c.loads[i], bias); err != nil {
			return nil, locerr.Segment(err, i)
		}
	}

	if !c.hasPhdr {
		// No PT_PHDR: find the PT_LOAD segment whose file contents
		// hold the program-header table.
		phsize := uint64(id.Phnum) * 56
		for _, p := range ph {
			if p.Type == uint32(elf.PT_LOAD) && p.Off <= id.Phoff && id.Phoff+phsize <= p.Off+p.Filesz {
				c.phdrVaddr = uintptr(p.Vaddr + id.Phoff - p.Off)
				c.hasPhdr = true
				break
			}
		}
	}
	if !c.hasPhdr {
		return nil, fmt.Errorf("no program header found in any mapped segment")
	}

	lm := &LinkMap{
		Bias:      bias,
		Phdr:      c.phdrVaddr + bias,
		Phnum:     id.Phnum,
		Entry:     uintptr(id.Entry) + bias,
		InterpOff: c.interpOff,
		HasInterp: c.hasInterp,
		Dyn:       c.dyn.Vaddr + bias,
		DynSize:   c.dyn.Size,
		MapStart:  c.loads[0].MapStart + bias,
		MapEnd:    c.loads[len(c.loads)-1].AllocEnd + bias,
	}
	return lm, nil
}

// the two e_type values this package cares about; kept local rather
// than importing debug/elf's ET_DYN/ET_EXEC into this file's
// switch literal for readability next to Identity.Type's uint16 field.
const (
	typeDyn  = 3 // elf.ET_DYN
	typeExec = 2 // elf.ET_EXEC
)

// mapDyn maps a position-independent image with a single private file
// mapping covering the whole extent, letting the kernel choose the
// base address, then deriving the load bias from the result. Matches
// map_so_lib's ET_DYN branch exactly: the combined mapping carries the
// first LoadCmd's protection everywhere, so everything past its
// file-backed part — every later segment's own data plus the final
// alloc tail — is first blanketed PROT_NONE, then each later segment
// re-establishes its own protection over its own range, leaving only
// the inter-segment gaps and unclaimed tail genuinely inaccessible.
func mapDyn(f *os.File, c collected) (uintptr, error) {
	first := c.loads[0]
	last := c.loads[len(c.loads)-1]
	extent := last.AllocEnd - first.MapStart

	addr, err := sysc.MapFile(0, extent, first.Prot, int(f.Fd()), int64(first.Offset), false)
	if err != nil {
		return 0, locerr.Wrap(err, "map PT_LOAD extent")
	}
	bias := addr - first.MapStart

	if last.AllocEnd > first.MapEnd {
		if err := sysc.Mprotect(first.MapEnd+bias, last.AllocEnd-first.MapEnd, protNone); err != nil {
			return 0, locerr.Wrap(err, "protect ET_DYN tail as no-access")
		}
	}

	for i := 1; i < len(c.loads); i++ {
		lc := c.loads[i]
		if lc.MapEnd > lc.MapStart {
			if err := sysc.Mprotect(lc.MapStart+bias, lc.MapEnd-lc.MapStart, lc.Prot); err != nil {
				return 0, locerr.Segment(err, i)
			}
		}
	}
	return bias, nil
}

// mapExec maps a fixed-address image by mapping every PT_LOAD
// individually at its declared address, per this package's resolution
// of the ET_EXEC ambiguity: map each segment rather than relying on a
// single mapping.
func mapExec(f *os.File, c collected, loaderExtent reserve.Range) (uintptr, error) {
	first := c.loads[0]
	last := c.loads[len(c.loads)-1]
	req := reserve.Range{Addr: first.MapStart, Size: last.AllocEnd - first.MapStart}
	if req.Overlaps(loaderExtent) {
		return 0, fmt.Errorf("binary range %x-%x overlaps loader range %x-%x",
			req.Addr, req.Addr+req.Size, loaderExtent.Addr, loaderExtent.Addr+loaderExtent.Size)
	}

	for i, lc := range c.loads {
		if lc.MapEnd > lc.MapStart {
			_, err := sysc.MapFile(lc.MapStart, lc.MapEnd-lc.MapStart, lc.Prot, int(f.Fd()), int64(lc.Offset), true)
			if err != nil {
				return 0, locerr.Segment(err, i)
			}
		}
		if lc.AllocEnd > lc.MapEnd {
			anonStart := pageRoundUp(lc.MapEnd, uintptr(sysc.PageSize))
			if lc.AllocEnd > anonStart {
				if _, err := sysc.MapAnon(anonStart, lc.AllocEnd-anonStart, lc.Prot); err != nil {
					return 0, locerr.Segment(err, i)
				}
			}
		}
	}
	return 0, nil // ET_EXEC has zero bias by definition
}

// zeroTail zero-fills the BSS tail of a LoadCmd: the bytes between
// DataEnd and the containing page boundary, then maps anonymous pages
// with the segment's protection for any remaining whole pages up to
// AllocEnd. Matches map_so_lib's tail-zero loop, including the
// temporary PROT_WRITE grant for read-only segments.
func zeroTail(lc LoadCmd, bias uintptr) error {
	if lc.AllocEnd <= lc.DataEnd {
		return nil
	}
	dataEnd := lc.DataEnd + bias
	pageEnd := pageRoundUp(dataEnd, uintptr(sysc.PageSize))
	allocEnd := lc.AllocEnd + bias

	if pageEnd > dataEnd {
		needsTempWrite := lc.Prot&protWrite == 0
		if needsTempWrite {
			if err := sysc.Mprotect(pageRoundDown(dataEnd, uintptr(sysc.PageSize)), uintptr(sysc.PageSize), lc.Prot|protWrite); err != nil {
				return locerr.Wrap(err, "grant temporary write for tail zero")
			}
		}
		sysc.Zero(dataEnd, pageEnd-dataEnd)
		if needsTempWrite {
			if err := sysc.Mprotect(pageRoundDown(dataEnd, uintptr(sysc.PageSize)), uintptr(sysc.PageSize), lc.Prot); err != nil {
				return locerr.Wrap(err, "restore protection after tail zero")
			}
		}
	}
	if allocEnd > pageEnd {
		if _, err := sysc.MapAnon(pageEnd, allocEnd-pageEnd, lc.Prot); err != nil {
			return locerr.Wrap(err, "map anonymous BSS overflow")
		}
	}
	return nil
}
