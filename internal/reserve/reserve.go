// Package reserve implements the reservation engine: it claims,
// tests, and prunes the fixed virtual-address ranges the downstream
// program needs before anything else touches the address space.
// Grounded on preloader.c's preload_info[] plus preload_reserve,
// is_addr_reserved and remove_preload_range.
package reserve

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"lowmem.dev/preload/internal/sysc"
	"lowmem.dev/preload/internal/wld"
)

// Range names one reserved address window. Size 0 means an empty
// range. A List keeps no terminator in its own slice; InfoTable
// appends the zero entry that ends the exported table.
type Range struct {
	Addr uintptr
	Size uintptr
}

func (r Range) end() uintptr { return r.Addr + r.Size }

func (r Range) overlaps(other Range) bool {
	if r.Size == 0 || other.Size == 0 {
		return false
	}
	return r.Addr < other.end() && other.Addr < r.end()
}

// Overlaps is the exported form of overlaps, for callers outside this
// package (the ELF mapper's loader-extent collision check).
func (r Range) Overlaps(other Range) bool { return r.overlaps(other) }

func (r Range) contains(addr uintptr) bool {
	return r.Size != 0 && addr >= r.Addr && addr < r.end()
}

// amd64PreloadInfo and arm64PreloadInfo are this package's analogue of
// preload_info[]'s 64-bit table: the fixed set of regions the
// downstream Windows-compatible runtime relies on at known addresses.
// This is the LP64 table only — the low-64KiB first-page guard is an
// __i386__-only entry in the original and has no 64-bit counterpart,
// so it is not carried here. Two user-provided slots follow every list
// conceptually: one for the WINEPRELOADRESERVE range, one terminator
// (both handled by List as plain slice growth rather than fixed
// slots).
var amd64PreloadInfo = []Range{
	{0x000000010000, 0x000000100000}, // DOS area
	{0x000000110000, 0x67ef0000},     // low memory area
	{0x00007ff00000, 0x000f0000},     // shared user data
	{0x7ffffe000000, 0x01ff0000},     // top-down allocations + virtual heap
}

var arm64PreloadInfo = []Range{
	{0x000000010000, 0x000000100000},
	{0x000000110000, 0x67ef0000},
	{0x00007ff00000, 0x000f0000},
	{0x7ffffe000000, 0x01ff0000},
}

// lowRangeLimit marks the boundary below which reservation failures
// are not reported, matching the original's silent treatment of the
// low-64KiB entry: almost every host kernel already forbids mapping
// this low, so warning about it is just noise.
const lowRangeLimit = 0x10000

// lowMemoryLimit bounds the prefix of the static table preload_reserve
// checks a user range against: the DOS area and low memory area, never
// the shared-user-data page or the top-down window above it.
const lowMemoryLimit = 0x110000

// List is the live, mutable ReservedList: the static table plus one
// slot for a user range, managed as a plain slice with the usual
// append/slice-shrink idioms rather than the original's fixed C array
// and sentinel loop.
type List struct {
	ranges []Range
	table  []Range
}

// New builds a List seeded with the architecture's static table.
func New(arch string) *List {
	var base []Range
	switch arch {
	case "arm64":
		base = arm64PreloadInfo
	default:
		base = amd64PreloadInfo
	}
	l := &List{ranges: make([]Range, len(base))}
	copy(l.ranges, base)
	return l
}

// AddUserRange appends a caller-parsed WINEPRELOADRESERVE range,
// truncating or discarding it against the low part of the static table
// exactly as preload_reserve does: walk the table in order, stopping
// at the first entry above lowMemoryLimit (the shared-user-data page
// and top-down window are never considered here), discarding the user
// range outright if it doesn't reach past the low entry, otherwise
// pushing its start past that entry's end.
func (l *List) AddUserRange(r Range, loaderExtent Range) {
	if r.Size == 0 {
		return
	}
	if r.overlaps(loaderExtent) {
		wld.Fatalf("WINEPRELOADRESERVE range overlaps loader\n")
		return
	}
	for _, existing := range l.ranges {
		if existing.Addr > lowMemoryLimit {
			break
		}
		if r.end() <= existing.end() {
			return
		}
		if r.Addr < existing.end() {
			end := r.end()
			r.Addr = existing.end()
			r.Size = end - r.Addr
		}
	}
	l.ranges = append(l.ranges, r)
}

// Ranges returns the live ranges. Reserve removes every range it
// fails to map; before the first Reserve call all listed ranges are
// returned.
func (l *List) Ranges() []Range {
	return l.ranges
}

// InfoTable returns the address of a zero-size-terminated Range array
// mirroring struct wine_preload_info[]: Range's two-word layout
// (Addr, Size uintptr) already matches that struct field for field, so
// no marshaling is needed. This is the value the exported
// wine_main_preload_info pointer is set to. Callers should call it
// once, after the reservation pass has finished pruning: the returned
// array is pinned inside the List itself, so it stays put for the
// remaining lifetime of the process (Go's garbage collector does not
// move live heap objects), but earlier appends to l.ranges would make
// an address handed out before Reserve stale.
func (l *List) InfoTable() uintptr {
	l.table = append(append([]Range(nil), l.ranges...), Range{})
	return uintptr(unsafe.Pointer(&l.table[0]))
}

// Overlaps reports whether addr falls in any still-live range, the Go
// equivalent of is_addr_reserved.
func (l *List) Overlaps(addr uintptr) bool {
	for _, r := range l.ranges {
		if r.contains(addr) {
			return true
		}
	}
	return false
}

// remove deletes the entry at index i, shifting the tail down and
// shrinking the slice by one (the original's remove_preload_range,
// minus the fixed-array bookkeeping).
func (l *List) remove(i int) {
	l.ranges = append(l.ranges[:i], l.ranges[i+1:]...)
}

// Reserve performs the reservation pass: map each range no-access, no
// reserve; drop ranges that collide with the stack/auxv or that the
// kernel refuses to satisfy exactly. stackLow/stackHigh bound the
// incoming stack and auxv region.
func (l *List) Reserve(stackLow, stackHigh uintptr) {
	i := 0
	for i < len(l.ranges) {
		r := l.ranges[i]
		if r.Size == 0 {
			i++
			continue
		}
		if r.overlaps(Range{stackLow, stackHigh - stackLow}) {
			l.remove(i)
			continue
		}
		got, err := sysc.MapFixedNoReplace(r.Addr, r.Size)
		if err != nil || got != r.Addr {
			if got != 0 {
				sysc.Munmap(got, r.Size)
			}
			if r.Addr >= lowRangeLimit {
				wld.Warnf("failed to reserve range %lx-%lx\n", uint64(r.Addr), uint64(r.end()))
			}
			l.remove(i)
			continue
		}
		i++
	}
	l.fixupTopOfRangeNX()
}

// fixupTopOfRangeNX installs PROT_EXEC|PROT_READ on the top page of
// the top-of-address-space window when it is still reserved, defeating
// CPUs/kernels that enforce NX based on the code-segment limit rather
// than per-page protection bits.
func (l *List) fixupTopOfRangeNX() {
	pageSize := uintptr(sysc.PageSize)
	topBoundary := uintptr(0x7ffffe000000+0x01ff0000) - pageSize
	for _, r := range l.ranges {
		if r.Size != 0 && r.contains(topBoundary) {
			if err := sysc.Mprotect(topBoundary, pageSize, unix.PROT_READ|unix.PROT_EXEC); err != nil {
				wld.Warnf("failed to defeat NX at top of address space\n")
			}
			return
		}
	}
}
