package shmchannel

import (
	"encoding/binary"
	"unsafe"
)

// atomicPtr returns a pointer to the uint64 word at byte offset off within
// mem, for use with sync/atomic. The header reserves 8-byte-aligned slots
// for exactly this reason (magic @0, head @8, tail @16).
func atomicPtr(mem []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&mem[off])
}

// putUint64 and getUint64 use a fixed little-endian wire layout for the
// per-slot length prefix so any process mapping the region — regardless of
// host endianness assumptions in its own language — reads the same bytes a
// Go process wrote.
func putUint64(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}

func getUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}
