package wld

import (
	"io"

	"lowmem.dev/preload/internal/sysc"
)

// fdWriter adapts a raw fd to io.Writer for DumpMaps callers that have
// no os.File handy (this package avoids "os" on its write paths).
type fdWriter int

func (w fdWriter) Write(p []byte) (int, error) {
	return sysc.Write(int(w), p)
}

// DumpMapsToStderr is DumpMaps written straight to fd 2, the call
// sites under Debug.Maps actually use.
func DumpMapsToStderr() error {
	return DumpMaps(fdWriter(2))
}

// DumpMaps copies /proc/self/maps to w, for use under Debug.Maps. This
// is the Go equivalent of the original's DUMP_MAPS-gated debug dump;
// unlike the original it reads the file through the syscall substrate
// rather than a libc-buffered stream, since this package has no other
// dependency on "os".
func DumpMaps(w io.Writer) error {
	fd, err := sysc.Open("/proc/self/maps", 0)
	if err != nil {
		return err
	}
	defer sysc.Close(fd)

	var buf [4096]byte
	for {
		n, err := sysc.Read(fd, buf[:])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil || n == 0 {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
