//go:build darwin

package main

import (
	"fmt"

	"lowmem.dev/preload/internal/machoimage"
	"lowmem.dev/preload/internal/reserve"
	"lowmem.dev/preload/internal/sysc"
	"lowmem.dev/preload/internal/wld"
)

var loaderRange reserve.Range

func loaderExtent() reserve.Range {
	return loaderRange
}

// runTarget is the Mach-O orchestration path: reserve the same
// regions the ELF path would, reserve a placeholder at the builtin-
// DLL window while the host loader resolves the main image, then
// discover its entry point from load commands. Matches spec §4.6/§2's
// description of the Apple branch of wld_start.
func runTarget(target string, args []string, list *reserve.List) error {
	list.Reserve(0, 0)

	window := machoimage.ReservePlaceholder(builtinDLLBase, builtinDLLSize)

	h, err := machoimage.Dlopen(target)
	window.Release()
	if err != nil {
		return fmt.Errorf("loading %s: %w", target, err)
	}

	if sym, err := h.Sym("wine_main_preload_info"); err == nil {
		writePointerAt(uintptr(sym), list.InfoTable())
	} else {
		wld.Warnf("wine_main_preload_info not found\n")
	}

	slide, ok := machoimage.FindExecutableSlide()
	if !ok {
		return fmt.Errorf("could not find mach header for %s", target)
	}

	entry, err := machoimage.DiscoverEntry(target, slide)
	if err != nil {
		return fmt.Errorf("discovering entry point of %s: %w", target, err)
	}

	handoff, err := machoimage.BuildHandoff(args, environSnapshot(), []string{"executable_path=" + target})
	if err != nil {
		return fmt.Errorf("building handoff stack: %w", err)
	}

	switch entry.Kind {
	case machoimage.EntryMain:
		sysc.JumpToMain(entry.Addr, handoff.Top, handoff.Argc, handoff.ArgvAddr, handoff.EnvpAddr, handoff.AppleAddr)
	default:
		sysc.JumpToEntry(entry.Addr, handoff.Top)
	}
	return nil
}

func writePointerAt(addr uintptr, v uintptr) {
	b := sysc.ReadMem(addr, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// builtinDLLBase/Size mirror the Apple-only placeholder window
// preloader.c reserves so the host loader cannot claim it while the
// main image is being resolved.
const (
	builtinDLLBase = 0x7a000000
	builtinDLLSize = 0x02000000
)
