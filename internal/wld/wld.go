// Package wld is the minimal formatting and reporting layer: the Go
// counterpart of loader/preloader.c's wld_vsprintf/wld_printf/
// fatal_error. It understands the same tiny printf subset the
// original does — %x, %lx, %p, %s, plus %d for convenience — formats
// into a fixed stack buffer, and emits it with one write(2) syscall,
// so that fatal reporting works even if called before anything in the
// "os" package would be safe to touch.
package wld

import (
	"strconv"

	"lowmem.dev/preload/internal/sysc"
)

// Debug mirrors the original's compile-time DUMP_* switches. Since Go
// has no preprocessor, they are runtime flags instead, all false by
// default; cmd/preload sets them from WINEPRELOADDEBUG via ParseDebug
// and consults them to trace auxv contents, segment layout, symbol
// resolution and /proc/self/maps.
var Debug = struct {
	Auxv, Segments, Syms, Maps bool
}{}

// ParseDebug sets Debug's fields from a comma-separated list of names
// (auxv, segments, syms, maps), the runtime-flag equivalent of the
// original's DUMP_AUX_INFO/DUMP_SEGMENTS/DUMP_SYMS/DUMP_MAPS compile
// switches. Unknown names are ignored.
func ParseDebug(spec string) {
	start := 0
	for i := 0; i <= len(spec); i++ {
		if i == len(spec) || spec[i] == ',' {
			switch spec[start:i] {
			case "auxv":
				Debug.Auxv = true
			case "segments":
				Debug.Segments = true
			case "syms":
				Debug.Syms = true
			case "maps":
				Debug.Maps = true
			}
			start = i + 1
		}
	}
}

const bufSize = 256

// format renders the printf subset described above into a fixed
// buffer, returning the formatted byte slice. Unsupported verbs are
// copied through literally, matching the original's behavior of
// treating an unrecognized '%' + letter as plain text once it falls
// off the known cases.
func format(buf []byte, f string, args ...interface{}) []byte {
	out := buf[:0]
	ai := 0
	next := func() interface{} {
		if ai < len(args) {
			v := args[ai]
			ai++
			return v
		}
		return nil
	}
	for i := 0; i < len(f); i++ {
		c := f[i]
		if c != '%' || i+1 >= len(f) {
			out = append(out, c)
			continue
		}
		i++
		switch {
		case f[i] == 'x':
			out = appendHex(out, toUint64(next()), 8)
		case f[i] == 'p':
			out = append(out, '0', 'x')
			out = appendHex(out, toUint64(next()), 16)
		case f[i] == 's':
			out = append(out, toString(next())...)
		case f[i] == 'd':
			out = append(out, strconv.FormatInt(toInt64(next()), 10)...)
		case f[i] == 'l' && i+1 < len(f) && f[i+1] == 'x':
			out = appendHex(out, toUint64(next()), 16)
			i++
		default:
			out = append(out, '%', f[i])
		}
	}
	return out
}

func appendHex(out []byte, v uint64, digits int) []byte {
	const hex = "0123456789abcdef"
	for i := digits - 1; i >= 0; i-- {
		out = append(out, hex[(v>>(uint(i)*4))&0xf])
	}
	return out
}

func toUint64(v interface{}) uint64 {
	switch x := v.(type) {
	case uint64:
		return x
	case uint32:
		return uint64(x)
	case uintptr:
		return uint64(x)
	case int:
		return uint64(x)
	case int32:
		return uint64(x)
	case int64:
		return uint64(x)
	default:
		return 0
	}
}

func toInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	default:
		return int64(toUint64(v))
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Warnf writes a warning line to fd 2 and returns. Matches the
// original's wld_printf used for non-fatal conditions (a dropped
// reservation range, a missing optional symbol).
func Warnf(f string, args ...interface{}) {
	var buf [bufSize]byte
	line := format(buf[:0], f, args...)
	sysc.Write(2, line)
}

// Fatalf writes a message to fd 2 and terminates the process with
// status 1. Never returns. Matches the original's fatal_error.
func Fatalf(f string, args ...interface{}) {
	var buf [bufSize]byte
	line := format(buf[:0], f, args...)
	sysc.Write(2, line)
	sysc.Exit(1)
}
