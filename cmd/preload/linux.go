//go:build linux

package main

import (
	"fmt"

	"golang.org/x/sys/unix"

	"lowmem.dev/preload/internal/auxv"
	"lowmem.dev/preload/internal/elfimage"
	"lowmem.dev/preload/internal/procname"
	"lowmem.dev/preload/internal/reserve"
	"lowmem.dev/preload/internal/symtab"
	"lowmem.dev/preload/internal/sysc"
	"lowmem.dev/preload/internal/wld"
)

// handoffStackSize is the size of the fresh mapping the rewritten
// argc/argv/envp/auxv image is built in. By the time this code runs
// the Go runtime has long since taken over the stack the kernel
// actually handed this process, so stackBounds' (0, 0) cannot double
// as the destination memory for that image; a dedicated mapping is
// used instead, the same reasoning the Mach-O path's BuildHandoff
// applies.
const handoffStackSize = 1 << 20

// loaderRange stands for this binary's own mapped extent. Nothing
// assigns it, so it stays the zero range, which never overlaps
// anything: the loader-overlap checks in reserve.List.AddUserRange and
// elfimage.Map never reject a range on this host.
var loaderRange reserve.Range

func loaderExtent() reserve.Range {
	return loaderRange
}

// runTarget is the Linux/ELF orchestration path: reservation engine,
// then map the main image, then its interpreter if it has one, then
// look up the well-known exported pointer, then rewrite the auxv and
// hand off. Matches the data flow spec §2 describes for the non-Apple
// branch of wld_start.
func runTarget(target string, args []string, list *reserve.List) error {
	auxEntries := auxv.Read()
	stackLow, stackHigh := stackBounds(auxEntries)
	list.Reserve(stackLow, stackHigh)

	if wld.Debug.Auxv {
		for _, e := range auxEntries {
			wld.Warnf("auxv: type=%d value=%lx\n", int(e.Type), e.Value)
		}
	}

	lm, err := elfimage.Map(target, loaderExtent())
	if err != nil {
		return fmt.Errorf("loading %s: %w", target, err)
	}

	if wld.Debug.Segments {
		wld.Warnf("segments: map=%lx-%lx entry=%lx bias=%lx\n",
			uint64(lm.MapStart), uint64(lm.MapEnd), uint64(lm.Entry), uint64(lm.Bias))
	}

	var interp *elfimage.LinkMap
	if lm.HasInterp {
		path := readCString(lm.Bias + lm.InterpOff)
		interp, err = elfimage.Map(path, loaderExtent())
		if err != nil {
			return fmt.Errorf("loading interpreter %s: %w", path, err)
		}
	} else {
		interp = lm
	}

	tbl := symtab.Load(lm.Dyn, lm.DynSize, lm.Bias)
	if addr, ok := tbl.Lookup("wine_main_preload_info"); ok {
		writePointer(addr, list.InfoTable())
		if wld.Debug.Syms {
			wld.Warnf("wine_main_preload_info resolved at %p\n", addr)
		}
	} else {
		wld.Warnf("wine_main_preload_info not found\n")
	}

	if wld.Debug.Maps {
		wld.DumpMapsToStderr()
	}

	procname.SetProcessName(target)

	set := auxv.FromAuxv(auxEntries)
	for _, r := range list.Ranges() {
		set.DeleteIfInRange(auxv.Sysinfo, r.Addr, r.Addr+r.Size)
		set.DeleteIfInRange(auxv.SysinfoEhdr, r.Addr, r.Addr+r.Size)
	}

	flags, _ := auxv.Get(auxEntries, auxv.Flags)
	uid := getAuxiliary(auxEntries, auxv.Uid, uint64(sysc.Getuid()))
	euid := getAuxiliary(auxEntries, auxv.Euid, uint64(sysc.Geteuid()))
	gid := getAuxiliary(auxEntries, auxv.Gid, uint64(sysc.Getgid()))
	egid := getAuxiliary(auxEntries, auxv.Egid, uint64(sysc.Getegid()))

	set.MustSet(
		uint64(lm.Phdr), 56, uint64(lm.Phnum), uint64(sysc.PageSize),
		uint64(interp.Bias), flags, uint64(lm.Entry),
		uid, euid, gid, egid,
	)

	stackBase, err := sysc.MapAnon(0, handoffStackSize, unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return fmt.Errorf("building handoff stack: %w", err)
	}
	sp := auxv.Build(stackBase, handoffStackSize, args, currentEnviron(), set.Entries())
	sysc.JumpToEntry(interp.Entry, sp)
	return nil
}

func stackBounds(entries []auxv.Entry) (uintptr, uintptr) {
	// The live stack's bounds aren't exposed via auxv directly, and
	// this loader does not compute them: it returns an empty range, so
	// the reservation pass's stack-overlap check never drops a range.
	return 0, 0
}

func readCString(addr uintptr) string {
	var buf []byte
	for {
		b := sysc.ReadMem(addr+uintptr(len(buf)), 1)
		if b[0] == 0 {
			break
		}
		buf = append(buf, b[0])
	}
	return string(buf)
}

func writePointer(addr uintptr, v uintptr) {
	b := sysc.ReadMem(addr, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func currentEnviron() []string {
	return environSnapshot()
}

// getAuxiliary prefers the incoming auxv's own value for typ, falling
// back to a freshly queried one only when the entry is absent.
// Mirrors get_auxiliary( av, type, wld_getuid() )'s fallback order.
func getAuxiliary(entries []auxv.Entry, typ uint64, fallback uint64) uint64 {
	if v, ok := auxv.Get(entries, typ); ok {
		return v
	}
	return fallback
}
