// Package elfimage is the ELF object mapper: it reproduces, in user
// space, what the kernel and dynamic linker normally do when they
// start a process — program-header walking, segment mapping, BSS
// zero-fill, interpreter discovery. Grounded on elf.go's
// assignSegments/readLoadSegment plus preloader.c's map_so_lib;
// narrowly uses debug/elf only for the magic/class/machine identity
// check, since debug/elf cannot expose raw Phdr.Align or the GNU hash
// table symtab/symtab needs later.
package elfimage

import (
	"bufio"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"lowmem.dev/preload/internal/locerr"
)

// This loader targets LP64 hosts only (amd64, arm64); the 32-bit x86
// variant of the original is out of scope here, matching reserve's
// amd64/arm64-only static tables.

type rawEhdr64 struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type rawPhdr64 struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

const maxProgramHeaders = 16

// ProgHeader is this package's transient per-entry record, the Go
// analogue of a raw Elf64_Phdr with the fields the mapper needs.
type ProgHeader struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// Identity is the result of validating an ELF file's magic, class,
// data encoding and machine type against the build's expectations.
type Identity struct {
	Type    uint16
	Entry   uint64
	Phoff   uint64
	Phnum   int
	Machine elf.Machine
}

// Identify reads and validates the ELF identity of f: magic, class
// (ELFCLASS64 only), data encoding (little-endian only) and machine
// type. It returns the raw header fields a caller needs to start a
// program-header walk.
func Identify(f *os.File) (Identity, error) {
	var hdr rawEhdr64
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Identity{}, locerr.Wrap(err, "seek")
	}
	r := bufio.NewReader(f)
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return Identity{}, locerr.Wrap(err, "read ELF header")
	}
	if string(hdr.Ident[:4]) != "\x7fELF" {
		return Identity{}, fmt.Errorf("not an ELF file")
	}
	if elf.Class(hdr.Ident[4]) != elf.ELFCLASS64 {
		return Identity{}, fmt.Errorf("unsupported ELF class %d", hdr.Ident[4])
	}
	if elf.Data(hdr.Ident[5]) != elf.ELFDATA2LSB {
		return Identity{}, fmt.Errorf("unsupported ELF data encoding %d", hdr.Ident[5])
	}
	machine := elf.Machine(hdr.Machine)
	if machine != buildMachine {
		return Identity{}, fmt.Errorf("wrong machine type %v, want %v", machine, buildMachine)
	}
	if hdr.Type != uint16(elf.ET_DYN) && hdr.Type != uint16(elf.ET_EXEC) {
		return Identity{}, fmt.Errorf("not ET_DYN or ET_EXEC: %d", hdr.Type)
	}
	if int(hdr.Phnum) > maxProgramHeaders {
		return Identity{}, fmt.Errorf("too many program headers: %d", hdr.Phnum)
	}
	return Identity{
		Type:    hdr.Type,
		Entry:   hdr.Entry,
		Phoff:   hdr.Phoff,
		Phnum:   int(hdr.Phnum),
		Machine: machine,
	}, nil
}

// ReadProgramHeaders walks the program-header table at id.Phoff,
// returning one ProgHeader per entry, in file order. Rejects headers
// whose vaddr/offset pair is inconsistent modulo Align, matching the
// original's misaligned-load-command check.
func ReadProgramHeaders(f *os.File, id Identity) ([]ProgHeader, error) {
	if _, err := f.Seek(int64(id.Phoff), io.SeekStart); err != nil {
		return nil, locerr.Wrap(err, "seek to program headers")
	}
	r := bufio.NewReader(f)
	out := make([]ProgHeader, 0, id.Phnum)
	for i := 0; i < id.Phnum; i++ {
		var raw rawPhdr64
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, locerr.Segment(err, i)
		}
		if raw.Align > 1 && (raw.Vaddr-raw.Off)%raw.Align != 0 {
			return nil, locerr.Segment(fmt.Errorf("vaddr/offset misaligned"), i)
		}
		out = append(out, ProgHeader{
			Type:   raw.Type,
			Flags:  raw.Flags,
			Off:    raw.Off,
			Vaddr:  raw.Vaddr,
			Filesz: raw.Filesz,
			Memsz:  raw.Memsz,
			Align:  raw.Align,
		})
	}
	return out, nil
}
