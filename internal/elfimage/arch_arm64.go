package elfimage

import "debug/elf"

var buildMachine = elf.EM_AARCH64
