package machoimage

import (
	"debug/macho"
	"encoding/binary"
	"testing"
)

func buildLCMain(entryoff uint64) macho.LoadBytes {
	b := make([]byte, 24)
	binary.LittleEndian.PutUint32(b[0:], lcMain)
	binary.LittleEndian.PutUint32(b[4:], uint32(len(b)))
	binary.LittleEndian.PutUint64(b[8:], entryoff)
	return macho.LoadBytes(b)
}

func TestTryMain(t *testing.T) {
	lc := buildLCMain(0x1000)
	addr, ok := tryMain(lc)
	if !ok {
		t.Fatalf("expected LC_MAIN to be recognized")
	}
	if addr != 0x1000 {
		t.Fatalf("entryoff = %x, want 0x1000", addr)
	}
}

func TestTryMainRejectsOtherCommands(t *testing.T) {
	b := make([]byte, 24)
	binary.LittleEndian.PutUint32(b[0:], lcUnixthread)
	if _, ok := tryMain(macho.LoadBytes(b)); ok {
		t.Fatalf("did not expect LC_UNIXTHREAD to be read as LC_MAIN")
	}
}

func TestTryUnixThreadAmd64(t *testing.T) {
	// header(8) + flavor/count(8) + 42 registers of x86_thread_state64_t.
	b := make([]byte, 16+42*8)
	binary.LittleEndian.PutUint32(b[0:], lcUnixthread)
	binary.LittleEndian.PutUint32(b[4:], uint32(len(b)))
	const ripIndex = 16
	binary.LittleEndian.PutUint64(b[16+ripIndex*8:], 0xdeadbeef)
	addr, ok := tryUnixThread(macho.LoadBytes(b), macho.CpuAmd64)
	if !ok {
		t.Fatalf("expected LC_UNIXTHREAD to be recognized")
	}
	if addr != 0xdeadbeef {
		t.Fatalf("rip = %x, want 0xdeadbeef", addr)
	}
}
