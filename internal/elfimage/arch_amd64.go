package elfimage

import "debug/elf"

// buildMachine is the machine type this binary was built for; the
// loader only ever maps images for its own architecture, exactly as
// the original's #ifdef __i386__ / __x86_64__ selection does.
var buildMachine = elf.EM_X86_64
