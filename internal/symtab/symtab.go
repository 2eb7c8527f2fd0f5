// Package symtab locates a named global object symbol in a loaded
// ELF image's dynamic symbol table, supporting both the classical ELF
// hash table and the GNU hash variant. Grounded on preloader.c's
// wld_elf_hash/gnu_hash/find_symbol; resolveSymbols in elf.go showed
// the same dynamic-tag walk in the teacher's idiom, generalized here
// from a flat link-time relocation table to a runtime hash lookup.
package symtab

import (
	"encoding/binary"

	"lowmem.dev/preload/internal/sysc"
)

const (
	dtNull    = 0
	dtHash    = 4
	dtStrtab  = 5
	dtSymtab  = 6
	dtGnuHash = 0x6ffffef5
)

type sym64 struct {
	Name  uint32
	Info  byte
	Other byte
	Shndx uint16
	Value uint64
	Size  uint64
}

const (
	stbGlobal = 1
	sttObject = 1
)

// Table is a resolved view over one image's dynamic symbol data:
// string table, symbol table, and whichever hash table the image
// carries (GNU hash preferred, per spec §4.4).
type Table struct {
	bias      uintptr
	strtab    uintptr
	symtab    uintptr
	elfHash   uintptr
	gnuHash   uintptr
}

// Load walks the dynamic section at dynAddr (already biased to a
// runtime address), dynSize bytes long, reading each 16-byte
// Elf64_Dyn straight from process memory via sysc.ReadMem until
// DT_NULL, and returns a Table ready for Lookup.
func Load(dynAddr uintptr, dynSize uintptr, bias uintptr) Table {
	t := Table{bias: bias}
	count := int(dynSize / 16)
	for i := 0; i < count; i++ {
		tag := readU64(dynAddr + uintptr(i*16))
		val := readU64(dynAddr + uintptr(i*16) + 8)
		switch tag {
		case dtNull:
			return t
		case dtStrtab:
			t.strtab = uintptr(val) + bias
		case dtSymtab:
			t.symtab = uintptr(val) + bias
		case dtHash:
			t.elfHash = uintptr(val) + bias
		case dtGnuHash:
			t.gnuHash = uintptr(val) + bias
		}
	}
	return t
}

func readU64(addr uintptr) uint64 {
	b := readBytes(addr, 8)
	return binary.LittleEndian.Uint64(b)
}

func readU32(addr uintptr) uint32 {
	b := readBytes(addr, 4)
	return binary.LittleEndian.Uint32(b)
}

func readBytes(addr uintptr, n int) []byte {
	return sysc.ReadMem(addr, n)
}

func readString(addr uintptr) string {
	var buf []byte
	for {
		b := readBytes(addr+uintptr(len(buf)), 1)
		if b[0] == 0 {
			break
		}
		buf = append(buf, b[0])
	}
	return string(buf)
}

func (t Table) readSym(index uint32) sym64 {
	addr := t.symtab + uintptr(index)*24
	return sym64{
		Name:  readU32(addr),
		Info:  readBytes(addr+4, 1)[0],
		Other: readBytes(addr+5, 1)[0],
		Shndx: binary.LittleEndian.Uint16(readBytes(addr+6, 2)),
		Value: readU64(addr + 8),
		Size:  readU64(addr + 16),
	}
}

func (s sym64) bind() byte { return s.Info >> 4 }
func (s sym64) kind() byte { return s.Info & 0xf }

// Lookup returns st_value+load_bias for name, or (0, false) if the
// image exports no matching STB_GLOBAL/STT_OBJECT symbol. GNU hash is
// used when the image carries one, otherwise the classical table;
// spec §4.4 notes the result must be independent of which is used.
func (t Table) Lookup(name string) (uintptr, bool) {
	if t.gnuHash != 0 {
		if v, ok := t.lookupGNU(name); ok {
			return v, ok
		}
		return 0, false
	}
	if t.elfHash != 0 {
		return t.lookupClassical(name)
	}
	return 0, false
}

func elfHash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = (h << 4) + uint32(name[i])
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
			h &^= g
		}
	}
	return h
}

func (t Table) lookupClassical(name string) (uintptr, bool) {
	nbucket := readU32(t.elfHash)
	buckets := t.elfHash + 8
	chains := buckets + uintptr(nbucket)*4

	h := elfHash(name)
	idx := readU32(buckets + uintptr(h%nbucket)*4)
	for idx != 0 {
		s := t.readSym(idx)
		if s.bind() == stbGlobal && s.kind() == sttObject && readString(t.strtab+uintptr(s.Name)) == name {
			return uintptr(s.Value) + t.bias, true
		}
		idx = readU32(chains + uintptr(idx)*4)
	}
	return 0, false
}

func gnuHash(name string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(name); i++ {
		h = h*33 + uint32(name[i])
	}
	return h
}

// lookupGNU implements the DJB-hash GNU hash table walk described in
// spec §4.4. The Bloom filter step is deliberately skipped, per the
// spec's explicit allowance that it is not required for correctness,
// only speed, for the single lookup this package performs.
func (t Table) lookupGNU(name string) (uintptr, bool) {
	nbuckets := readU32(t.gnuHash)
	symbias := readU32(t.gnuHash + 4)
	bloomWords := readU32(t.gnuHash + 8)
	// bloomShift := readU32(t.gnuHash + 12) // unused: bloom filter skipped

	bloomStart := t.gnuHash + 16
	bucketsStart := bloomStart + uintptr(bloomWords)*8
	chainStart := bucketsStart + uintptr(nbuckets)*4

	h := gnuHash(name)
	idx := readU32(bucketsStart + uintptr(h%nbuckets)*4)
	if idx < symbias {
		return 0, false
	}
	for {
		hashWord := readU32(chainStart + uintptr(idx-symbias)*4)
		if hashWord|1 == h|1 {
			s := t.readSym(idx)
			if s.bind() == stbGlobal && s.kind() == sttObject && readString(t.strtab+uintptr(s.Name)) == name {
				return uintptr(s.Value) + t.bias, true
			}
		}
		if hashWord&1 != 0 {
			return 0, false
		}
		idx++
	}
}
