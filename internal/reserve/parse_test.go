package reserve

import "testing"

func TestParseUserRangeZero(t *testing.T) {
	r, ok := ParseUserRange("0")
	if !ok {
		t.Fatalf("expected ok=true for \"0\"")
	}
	if r.Size != 0 {
		t.Fatalf("expected zero-size range, got %+v", r)
	}
}

func TestParseUserRangeRoundsToPages(t *testing.T) {
	r, ok := ParseUserRange("10001-1ffff")
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if r.Addr != 0x10000 {
		t.Fatalf("start not rounded down: got %x", r.Addr)
	}
	if r.end() != 0x20000 {
		t.Fatalf("end not rounded up: got %x", r.end())
	}
}

func TestParseUserRangeInvalid(t *testing.T) {
	cases := []string{"zzz", "", "10000", "20000-10000"}
	for _, c := range cases {
		if _, ok := ParseUserRange(c); ok {
			t.Fatalf("expected ok=false for %q", c)
		}
	}
}

func TestRangeOverlaps(t *testing.T) {
	a := Range{Addr: 0x1000, Size: 0x1000}
	b := Range{Addr: 0x1800, Size: 0x1000}
	c := Range{Addr: 0x3000, Size: 0x1000}
	if !a.overlaps(b) {
		t.Fatalf("expected overlap between %+v and %+v", a, b)
	}
	if a.overlaps(c) {
		t.Fatalf("did not expect overlap between %+v and %+v", a, c)
	}
}
