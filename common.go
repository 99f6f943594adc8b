package tracecore

import (
	"encoding/binary"
	"unsafe"
)

// SizeofPtr contains the size of a pointer of the current architecture
const (
	SizeofPtr = unsafe.Sizeof(0)
)

// SizeofWord is the size in bytes of a tracee memory word, as read/written
// by the peek_data/poke_data trace primitives.
const SizeofWord = 8

// ByteOrder is initialized with the byte order of the current architecture
var ByteOrder binary.ByteOrder

// ReadAddress reads a pointer from a byte slice
func ReadAddress(data []byte) uintptr {
	if len(data) < int(SizeofPtr) {
		return 0
	}

	if SizeofPtr == 4 {
		return uintptr(ByteOrder.Uint32(data))
	}

	return uintptr(ByteOrder.Uint64(data))
}

// ReadWord decodes a tracee memory word from its little/big-endian byte
// representation as returned by a peek_data primitive.
func ReadWord(data []byte) uint64 {
	if len(data) < SizeofWord {
		return 0
	}
	return ByteOrder.Uint64(data)
}

// WriteWord encodes a tracee memory word into its native byte representation
// for a poke_data primitive.
func WriteWord(word uint64) []byte {
	buf := make([]byte, SizeofWord)
	ByteOrder.PutUint64(buf, word)
	return buf
}

func init() {
	ByteOrder = getByteOrder()
}

func getByteOrder() binary.ByteOrder {
	buf := [2]byte{}
	*(*uint16)(unsafe.Pointer(&buf[0])) = uint16(0xABCD)

	switch buf {
	case [2]byte{0xCD, 0xAB}:
		return binary.LittleEndian
	case [2]byte{0xAB, 0xCD}:
		return binary.BigEndian
	default:
		panic("Could not determine native endianness.")
	}
}
