//go:build darwin

package machoimage

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
#include <mach-o/dyld.h>
#include <mach-o/loader.h>

static uint32_t mach_header_filetype(const struct mach_header *mh) {
	return mh->filetype;
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Handle wraps a host dynamic-loader handle returned by dlopen. This
// is the one cgo dependency in the whole loader: there is no
// syscall-level equivalent of dlopen on Apple platforms, since image
// loading there is a userspace service provided by dyld, not the
// kernel.
type Handle struct {
	h unsafe.Pointer
}

// Dlopen loads path into the current process via the host dynamic
// loader, the direct equivalent of preloader.c's dlopen call inside
// wld_start's Apple branch.
func Dlopen(path string) (*Handle, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	h := C.dlopen(cpath, C.RTLD_NOW)
	if h == nil {
		return nil, fmt.Errorf("dlopen %s: %s", path, C.GoString(C.dlerror()))
	}
	return &Handle{h: h}, nil
}

// Sym resolves name in the loaded image via dlsym, the equivalent of
// preloader.c's _dyld_func_lookup. A nil result is returned as an
// error; the caller decides how to treat it (cmd/preload only warns
// when wine_main_preload_info is missing).
func (h *Handle) Sym(name string) (unsafe.Pointer, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	sym := C.dlsym(h.h, cname)
	if sym == nil {
		return nil, fmt.Errorf("symbol %s not found", name)
	}
	return sym, nil
}

// FindExecutableSlide returns the load bias dyld applied to the target
// executable, the equivalent of find_executable plus
// _dyld_get_image_vmaddr_slide. There is no way to translate a dlopen
// handle back to its mach header, so the target image is located the
// same way the original does: scan dyld's loaded-image list for the
// first MH_EXECUTE image after index 0, which is always this process's
// own preloader binary.
func FindExecutableSlide() (uintptr, bool) {
	count := C._dyld_image_count()
	for i := C.uint32_t(1); i < count; i++ {
		hdr := C._dyld_get_image_header(i)
		if hdr == nil {
			continue
		}
		if C.mach_header_filetype(hdr) != C.MH_EXECUTE {
			continue
		}
		return uintptr(C._dyld_get_image_vmaddr_slide(i)), true
	}
	return 0, false
}
