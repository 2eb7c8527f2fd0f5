package procname

import "testing"

func TestBasename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/usr/bin/notepad.exe", "notepad.exe"},
		{"notepad.exe", "notepad.exe"},
		{"/", ""},
		{"a/b/", ""},
	}
	for _, c := range cases {
		if got := Basename(c.in); got != c.want {
			t.Fatalf("Basename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
