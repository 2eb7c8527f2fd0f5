// Package procname implements the process-name step performed just
// before hand-off, so that external process listings show the loaded
// program rather than the loader itself. Grounded on preloader.c's
// set_process_name: a last-'/' scan for the basename (not path.Base,
// to match the original's exact semantics of scanning from the end
// rather than validating the whole path) and the PR_SET_NAME call.
// There is no argv compaction and no zeroing of an argv/envp tail.
package procname

import "lowmem.dev/preload/internal/sysc"

// Basename returns the substring of path after the last '/', or the
// whole string if there is none — the same scan preloader.c performs,
// deliberately not using a path-parsing library, since a target image
// path is not guaranteed to be a well-formed path. A path ending in
// '/' yields "".
func Basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// SetProcessName sets the kernel comm field to basename(path)'s first
// 15 bytes and reports whether the kernel accepted it. It relies on
// sysc.SetProcessName, which only the Linux build defines, so this
// package builds on Linux only.
//
// set_process_name's other half — compacting argv in place to drop the
// loader's own argument 0 — has no counterpart here: the stack image
// this loader hands off is built fresh by auxv.Build rather than
// edited in place, and the caller simply never includes the loader's
// own path in the argument list it passes to Build. There is no stale
// slot left to compact.
func SetProcessName(path string) bool {
	return sysc.SetProcessName(Basename(path))
}
