// Package machoimage is the Mach-O variant of the loader: instead of
// mapping the target image itself, it reserves the same address
// regions as the ELF path and then delegates actual loading to the
// host dynamic loader, discovering an entry point by scanning the
// loaded image's Mach-O load commands. Grounded on preloader.c's
// map_region/is_region_empty/find_executable/get_entry_point.
package machoimage

import (
	"debug/macho"
	"fmt"
	"os"

	"lowmem.dev/preload/internal/locerr"
	"lowmem.dev/preload/internal/sysc"
	"lowmem.dev/preload/internal/wld"
)

// EntryKind tells the trampoline which register convention the
// discovered entry point expects.
type EntryKind int

const (
	EntryMain EntryKind = iota
	EntryUnixThread
)

// Entry is the result of scanning a Mach-O image's load commands for
// its start address.
type Entry struct {
	Addr uintptr
	Kind EntryKind
}

// ReserveRegion maps addr..addr+size no-access, verifying the mapping
// landed exactly where requested. Some kernels ignore the address
// hint to mmap; when that happens, the mapping is torn down and the
// range is probed with mincore to check it is genuinely empty before
// retrying with a fixed mapping. Mirrors is_region_empty/map_region.
func ReserveRegion(addr, size uintptr) bool {
	got, err := sysc.MapAnon(addr, size, 0)
	if err == nil && got == addr {
		return true
	}
	if got != 0 && got != addr {
		sysc.Munmap(got, size)
	}
	if !isRegionEmpty(addr, size) {
		wld.Warnf("region %lx-%lx is not empty, giving up\n", uint64(addr), uint64(addr+size))
		return false
	}
	got, err = sysc.MapAnon(addr, size, 0)
	if err != nil || got != addr {
		wld.Warnf("failed to reserve region %lx-%lx\n", uint64(addr), uint64(addr+size))
		return false
	}
	return true
}

// isRegionEmpty uses mincore to check that every page in the range is
// currently unmapped (mincore itself fails with ENOMEM in that case
// on most BSD-derived kernels, which this treats as "empty").
func isRegionEmpty(addr, size uintptr) bool {
	pages := (size + uintptr(sysc.PageSize) - 1) / uintptr(sysc.PageSize)
	vec := make([]byte, pages)
	err := sysc.Mincore(addr, size, vec)
	return err != nil
}

// PlaceholderWindow reserves the builtin-DLL window so the host
// loader cannot claim it while the main image is being resolved. The
// caller must call Release before discovering the entry point.
type PlaceholderWindow struct {
	addr, size uintptr
	ok         bool
}

func ReservePlaceholder(addr, size uintptr) *PlaceholderWindow {
	ok := ReserveRegion(addr, size)
	return &PlaceholderWindow{addr: addr, size: size, ok: ok}
}

func (p *PlaceholderWindow) Release() {
	if p.ok {
		sysc.Munmap(p.addr, p.size)
		p.ok = false
	}
}

// DiscoverEntry loads name's Mach-O load commands and returns its
// entry point, preferring LC_MAIN (entryoff added to the runtime
// address of the Mach header) and falling back to LC_UNIXTHREAD's
// instruction pointer. Both are biased by slide (the difference
// between the image's link-time address and where the host loader
// actually placed it).
func DiscoverEntry(name string, slide uintptr) (Entry, error) {
	f, err := os.Open(name)
	if err != nil {
		return Entry{}, locerr.Wrap(err, name)
	}
	defer f.Close()

	mf, err := macho.NewFile(f)
	if err != nil {
		return Entry{}, locerr.Wrap(err, name)
	}

	// LC_MAIN's entryoff is relative to the Mach header, which sits at
	// the start of __TEXT.
	var header uintptr
	if seg := mf.Segment("__TEXT"); seg != nil {
		header = uintptr(seg.Addr) + slide
	}
	for _, lc := range mf.Loads {
		if raw, ok := lc.(macho.LoadBytes); ok {
			if e, ok := tryMain(raw); ok {
				return Entry{Addr: header + e, Kind: EntryMain}, nil
			}
		}
	}
	for _, lc := range mf.Loads {
		if raw, ok := lc.(macho.LoadBytes); ok {
			if e, ok := tryUnixThread(raw, mf.Cpu); ok {
				return Entry{Addr: e + slide, Kind: EntryUnixThread}, nil
			}
		}
	}
	return Entry{}, fmt.Errorf("no LC_MAIN or LC_UNIXTHREAD found in %s", name)
}
