package reserve

import (
	"strconv"
	"strings"

	"lowmem.dev/preload/internal/sysc"
)

// ParseUserRange parses a WINEPRELOADRESERVE-style "START-END" hex
// string, rounding start down and end up to page granularity. "0"
// alone means "no range". Any other malformed input is fatal,
// matching preload_reserve's treatment: the caller is expected to
// call wld.Fatalf itself so the offending string ends up in the
// message (this function only reports ok=false).
func ParseUserRange(s string) (Range, bool) {
	if s == "0" {
		return Range{}, true
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Range{}, false
	}
	start, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return Range{}, false
	}
	end, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return Range{}, false
	}
	if end < start {
		return Range{}, false
	}
	lo := sysc.PageRoundDown(uintptr(start))
	hi := sysc.PageRoundUp(uintptr(end))
	return Range{Addr: lo, Size: hi - lo}, true
}
