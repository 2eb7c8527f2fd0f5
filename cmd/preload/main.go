// Command preload is the freestanding program-loader shim: it runs
// before the host's normal dynamic linker, reserves a fixed set of
// address regions, loads a target image (and, on ELF hosts, its
// interpreter), and transfers control as if it had never existed.
//
// Usage: preload <target-image> [target-args...]
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/xyproto/env/v2"

	"lowmem.dev/preload/internal/reserve"
	"lowmem.dev/preload/internal/wld"
)

func main() {
	if err := mainE(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// mainE is the testable entry point: it returns an error instead of
// calling os.Exit directly, except for conditions spec §7 marks as
// immediately fatal via wld.Fatalf (usage and malformed
// WINEPRELOADRESERVE both write their own message to fd 2 and exit,
// matching the original's fatal_error call sites exactly rather than
// going through Go's error-wrapping path).
func mainE(args []string) error {
	if len(args) < 2 {
		wld.Fatalf("Usage: loader <target-image> [target-args...]\n")
	}
	target := args[1]

	wld.ParseDebug(env.Str("WINEPRELOADDEBUG"))

	list := reserve.New(runtime.GOARCH)

	if raw := env.Str("WINEPRELOADRESERVE"); raw != "" {
		r, ok := reserve.ParseUserRange(raw)
		if !ok {
			wld.Fatalf("invalid WINEPRELOADRESERVE value '%s'\n", raw)
		}
		list.AddUserRange(r, loaderExtent())
	}

	return runTarget(target, args[1:], list)
}

