package sysc

import "golang.org/x/sys/unix"

const mapNoReservePlatform = unix.MAP_NORESERVE
