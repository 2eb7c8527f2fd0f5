package sysc

// JumpToEntry performs the trampoline-exit state transition described
// in spec §4.7: it points the stack pointer at sp (which the caller
// has already laid out as argc/argv/envp/auxv, exactly as a freshly
// exec'd process would see it), clears the general-purpose registers,
// and jumps to entry. It never returns — there is no Go frame left to
// return into, and no Go code runs again in this process.
//
// The implementation lives in per-architecture Plan 9 assembly
// (jump_<arch>.s), the one place in this module where hand-written
// assembly is unavoidable, matching the teacher domain's own
// per-architecture syscall stubs (preloader.c's SYSCALL_FUNC macros,
// xyproto-c67's syscall_x86.go/syscall_aarch.go split).
func JumpToEntry(entry, sp uintptr)

// JumpToMain performs the Mach-O LC_MAIN hand-off: argc/argv/envp/
// apple-data go into the platform's first four integer argument
// registers, SP is pointed at sp, and control jumps to entry. Mirrors
// the x86_64/arm64 halves of preloader.c's Apple _start after it
// decides the target uses LC_MAIN rather than LC_UNIXTHREAD (the
// latter still hands off through JumpToEntry, since it expects the
// classic argc-at-SP layout instead of a register-passed one).
func JumpToMain(entry, sp, argc, argv, envp, apple uintptr)
