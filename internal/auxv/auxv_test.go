package auxv

import "testing"

func TestSetDeleteRemovesMatchingEntries(t *testing.T) {
	s := FromAuxv([]Entry{{Type: Sysinfo, Value: 1}, {Type: Phdr, Value: 2}})
	if !s.Delete(Sysinfo) {
		t.Fatalf("expected Sysinfo to be present and removed")
	}
	for _, e := range s.entries {
		if e.Type == Sysinfo {
			t.Fatalf("Sysinfo entry still present after Delete")
		}
	}
}

func TestSetDeleteIfInRange(t *testing.T) {
	s := FromAuxv([]Entry{{Type: SysinfoEhdr, Value: 0x5000}})
	if !s.DeleteIfInRange(SysinfoEhdr, 0x4000, 0x6000) {
		t.Fatalf("expected in-range deletion to succeed")
	}
	s2 := FromAuxv([]Entry{{Type: SysinfoEhdr, Value: 0x9000}})
	if s2.DeleteIfInRange(SysinfoEhdr, 0x4000, 0x6000) {
		t.Fatalf("did not expect out-of-range deletion to succeed")
	}
}

func TestSetOverwritesExisting(t *testing.T) {
	s := FromAuxv([]Entry{{Type: Phnum, Value: 4}})
	s.Set(Phnum, 9)
	found := false
	for _, e := range s.entries {
		if e.Type == Phnum {
			found = true
			if e.Value != 9 {
				t.Fatalf("Phnum = %d, want 9", e.Value)
			}
		}
	}
	if !found {
		t.Fatalf("Phnum entry missing")
	}
}

func TestEntriesTerminatesWithNull(t *testing.T) {
	s := FromAuxv([]Entry{{Type: Phdr, Value: 1}})
	out := s.Entries()
	last := out[len(out)-1]
	if last.Type != Null || last.Value != 0 {
		t.Fatalf("expected trailing AT_NULL entry, got %+v", last)
	}
}

func TestMustSetPopulatesAllRequiredTags(t *testing.T) {
	s := FromAuxv(nil)
	s.MustSet(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)
	want := []uint64{Phdr, Phent, Phnum, Pagesz, Base, Flags, EntryTag, Uid, Euid, Gid, Egid}
	for _, tag := range want {
		found := false
		for _, e := range s.entries {
			if e.Type == tag {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing required auxv tag %d", tag)
		}
	}
}
