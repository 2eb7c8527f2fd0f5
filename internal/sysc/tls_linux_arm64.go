package sysc

// SetThreadPointer installs addr into TPIDR_EL0, the AArch64 thread
// pointer register, the arm64 analogue of x86's arch_prctl(ARCH_SET_FS, ...).
func SetThreadPointer(addr uintptr) error {
	setTPIDR(addr)
	return nil
}

// ClearThreadPointer undoes SetThreadPointer.
func ClearThreadPointer() error {
	setTPIDR(0)
	return nil
}

// setTPIDR is implemented in tls_arm64.s; TPIDR_EL0 is writable from
// EL0 on every Linux arm64 configuration this loader targets.
func setTPIDR(addr uintptr)
