package sysc

// darwin's mmap has no MAP_NORESERVE concept.
const mapNoReservePlatform = 0
