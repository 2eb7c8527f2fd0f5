package sysc

// ThreadScratch is static storage sized like preloader.c's
// `thread_data[256]`, the thread-local-storage segment the original
// installs so that stack-protector code has a valid %fs/%gs/TPIDR_EL0
// to read. Nothing in this module passes it to SetThreadPointer, and
// neither SetThreadPointer nor ClearThreadPointer is called on the
// hand-off path, so no TLS segment is installed or cleared.
var ThreadScratch [256]uintptr
