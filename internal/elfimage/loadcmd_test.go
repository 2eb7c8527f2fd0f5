package elfimage

import (
	"debug/elf"
	"testing"
)

func TestPageRounding(t *testing.T) {
	if got := pageRoundDown(0x1234, 0x1000); got != 0x1000 {
		t.Fatalf("pageRoundDown = %x, want 0x1000", got)
	}
	if got := pageRoundUp(0x1234, 0x1000); got != 0x2000 {
		t.Fatalf("pageRoundUp = %x, want 0x2000", got)
	}
	if got := pageRoundDown(0x2000, 0x1000); got != 0x2000 {
		t.Fatalf("pageRoundDown of an aligned address should be a no-op, got %x", got)
	}
}

func TestProgFlagsTranslation(t *testing.T) {
	rx := progFlags(uint32(elf.PF_R) | uint32(elf.PF_X))
	if rx&protWrite != 0 {
		t.Fatalf("PF_R|PF_X must not carry write permission")
	}
	if rx&protRead == 0 || rx&protExec == 0 {
		t.Fatalf("PF_R|PF_X must carry read and exec permission")
	}
}

func TestCollectRejectsEmptyLoadList(t *testing.T) {
	_, err := collect([]ProgHeader{{Type: uint32(elf.PT_NOTE)}})
	if err == nil {
		t.Fatalf("expected error when no PT_LOAD segments are present")
	}
}

func TestCollectBuildsLoadCmd(t *testing.T) {
	ph := []ProgHeader{
		{Type: uint32(elf.PT_LOAD), Flags: uint32(elf.PF_R) | uint32(elf.PF_X), Off: 0, Vaddr: 0, Filesz: 0x1000, Memsz: 0x2000, Align: 0x1000},
	}
	c, err := collect(ph)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.loads) != 1 {
		t.Fatalf("expected 1 LoadCmd, got %d", len(c.loads))
	}
	lc := c.loads[0]
	if lc.AllocEnd != 0x2000 {
		t.Fatalf("AllocEnd = %x, want 0x2000", lc.AllocEnd)
	}
	if lc.DataEnd != 0x1000 {
		t.Fatalf("DataEnd = %x, want 0x1000", lc.DataEnd)
	}
}
