package worker

import (
	"encoding/binary"

	"github.com/gravwell/ethercat/cia402"
	"github.com/gravwell/ethercat/pdo"
)

// writeModeAt writes the mode byte into its registered offset, truncated
// to the registered bit width (most drives map 0x6060 as a single byte).
func writeModeAt(img []byte, o pdo.Offset, mode cia402.Mode) {
	n := int(o.BitLength+7) / 8
	if n <= 0 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(mode))
	copy(img[o.ByteOff:o.ByteOff+n], buf[:n])
}

func i32Bytes(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func i16Bytes(v int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

func u32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}
