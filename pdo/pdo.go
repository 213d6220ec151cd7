// Package pdo implements the per-slave offsets table and the bit-exact
// little-endian read/write helpers over the process image (the "domain
// data pointer" of spec §6).
//
// Grounded on ingesters/canbus/canbus.go's packPacket/ExtractPacket, which
// extract and pack fixed-width fields at known byte offsets within a raw
// CAN frame; the same offset+width-over-byte-slice shape is generalized
// here from an 8-byte CAN frame to an arbitrarily sized EtherCAT process
// image.
package pdo

import "encoding/binary"

// Offset records where one (index, subindex) object was registered in the
// local process image, and how wide it is.
type Offset struct {
	Index     uint16
	Subindex  uint8
	ByteOff   int
	BitLength uint16
}

// Map is the per-slave offsets table: registered object -> offset. Built
// once at startup (spec §4.1 step 4) and never mutated afterward.
type Map struct {
	byKey map[key]Offset
}

type key struct {
	index    uint16
	subindex uint8
}

// NewMap creates an empty offsets table.
func NewMap() *Map {
	return &Map{byKey: make(map[key]Offset)}
}

// Register records offset for (index, subindex), bulk-called during
// startup PDO registration.
func (m *Map) Register(index uint16, subindex uint8, byteOff int, bitLength uint16) {
	m.byKey[key{index, subindex}] = Offset{Index: index, Subindex: subindex, ByteOff: byteOff, BitLength: bitLength}
}

// Lookup returns the offset for (index, subindex) and whether it is mapped.
func (m *Map) Lookup(index uint16, subindex uint8) (Offset, bool) {
	o, ok := m.byKey[key{index, subindex}]
	return o, ok
}

// Mapped reports whether (index, subindex) is mapped into the process image.
func (m *Map) Mapped(index uint16, subindex uint8) bool {
	_, ok := m.byKey[key{index, subindex}]
	return ok
}

// ReadU16 reads a little-endian uint16 at (index, subindex) from img.
func ReadU16(img []byte, o Offset) uint16 {
	return binary.LittleEndian.Uint16(img[o.ByteOff:])
}

// WriteU16 writes a little-endian uint16 at (index, subindex) into img.
func WriteU16(img []byte, o Offset, v uint16) {
	binary.LittleEndian.PutUint16(img[o.ByteOff:], v)
}

// ReadI16 reads a little-endian int16.
func ReadI16(img []byte, o Offset) int16 {
	return int16(ReadU16(img, o))
}

// WriteI16 writes a little-endian int16.
func WriteI16(img []byte, o Offset, v int16) {
	WriteU16(img, o, uint16(v))
}

// ReadU32 reads a little-endian uint32.
func ReadU32(img []byte, o Offset) uint32 {
	return binary.LittleEndian.Uint32(img[o.ByteOff:])
}

// WriteU32 writes a little-endian uint32.
func WriteU32(img []byte, o Offset, v uint32) {
	binary.LittleEndian.PutUint32(img[o.ByteOff:], v)
}

// ReadI32 reads a little-endian int32 -- the wire representation used for
// position, velocity and CSP target fields.
func ReadI32(img []byte, o Offset) int32 {
	return int32(ReadU32(img, o))
}

// WriteI32 writes a little-endian int32, preserving the two's-complement
// bit pattern required for CSP targets wrapping near ±2^31 (spec §4.3
// "CSP wraparound", §8 boundary behavior).
func WriteI32(img []byte, o Offset, v int32) {
	WriteU32(img, o, uint32(v))
}

// ReadBytes copies the raw bytes for o out of img (used for raw PDO/SDO
// payload commands).
func ReadBytes(img []byte, o Offset) []byte {
	n := int(o.BitLength+7) / 8
	b := make([]byte, n)
	copy(b, img[o.ByteOff:o.ByteOff+n])
	return b
}

// WriteBytes copies v into img at o's offset, truncating or zero-padding
// to o's registered width.
func WriteBytes(img []byte, o Offset, v []byte) {
	n := int(o.BitLength+7) / 8
	dst := img[o.ByteOff : o.ByteOff+n]
	c := copy(dst, v)
	for i := c; i < n; i++ {
		dst[i] = 0
	}
}
