package sysc

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("unix.Pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	msg := []byte("hello from the syscall substrate\n")
	n, err := Write(fds[1], msg)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(msg) {
		t.Fatalf("Write returned %d, want %d", n, len(msg))
	}

	buf := make([]byte, len(msg))
	n, err = Read(fds[0], buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != string(msg) {
		t.Fatalf("Read got %q, want %q", buf[:n], msg)
	}
}
