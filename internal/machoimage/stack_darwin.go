//go:build darwin

package machoimage

import (
	"golang.org/x/sys/unix"

	"lowmem.dev/preload/internal/sysc"
)

const wordSize = 8

// stackSize is generous enough for any realistic argv/envp/apple-data
// payload; it is a fresh anonymous mapping, not the process's own
// incoming stack, since by the time this code runs the Go runtime has
// long since taken over the one the kernel handed this process.
const stackSize = 1 << 20

// Handoff is the laid-out argc/argv/envp/apple-data image a Mach-O
// entry point expects, plus the addresses sysc.JumpToMain and
// sysc.JumpToEntry need for both calling conventions DiscoverEntry's
// EntryKind distinguishes.
type Handoff struct {
	Top       uintptr
	Argc      uintptr
	ArgvAddr  uintptr
	EnvpAddr  uintptr
	AppleAddr uintptr
}

// BuildHandoff lays out a fresh argc/argv/envp/apple-data image: the
// standard Mach-O process-start layout, contiguous and NULL
// terminated, 16-byte aligned at Top. Grounded on the amd64/arm64
// halves of preloader.c's Apple _start, which builds exactly this
// layout on the stack before an LC_UNIXTHREAD jump, and reads out of
// it directly (via registers) before an LC_MAIN call.
func BuildHandoff(argv, envp, appleData []string) (Handoff, error) {
	base, err := sysc.MapAnon(0, stackSize, unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return Handoff{}, err
	}

	top := base + stackSize
	writeStr := func(s string) uintptr {
		b := append([]byte(s), 0)
		top -= uintptr(len(b))
		copy(sysc.ReadMem(top, len(b)), b)
		return top
	}
	argvAddrs := make([]uintptr, len(argv))
	for i, a := range argv {
		argvAddrs[i] = writeStr(a)
	}
	envpAddrs := make([]uintptr, len(envp))
	for i, e := range envp {
		envpAddrs[i] = writeStr(e)
	}
	appleAddrs := make([]uintptr, len(appleData))
	for i, a := range appleData {
		appleAddrs[i] = writeStr(a)
	}

	totalWords := 1 + (len(argv) + 1) + (len(envp) + 1) + (len(appleData) + 1)
	top -= uintptr(totalWords) * wordSize
	top &^= 15

	cursor := top
	putWord := func(w uintptr) {
		b := sysc.ReadMem(cursor, wordSize)
		for i := 0; i < wordSize; i++ {
			b[i] = byte(w >> (8 * uint(i)))
		}
		cursor += wordSize
	}

	putWord(uintptr(len(argv)))
	argvAddr := cursor
	for _, a := range argvAddrs {
		putWord(a)
	}
	putWord(0)
	envpAddr := cursor
	for _, e := range envpAddrs {
		putWord(e)
	}
	putWord(0)
	appleAddr := cursor
	for _, a := range appleAddrs {
		putWord(a)
	}
	putWord(0)

	return Handoff{
		Top:       top,
		Argc:      uintptr(len(argv)),
		ArgvAddr:  argvAddr,
		EnvpAddr:  envpAddr,
		AppleAddr: appleAddr,
	}, nil
}
