package pdo

import "testing"

func TestMapRegisterLookup(t *testing.T) {
	m := NewMap()
	m.Register(0x6040, 0, 0, 16)
	m.Register(0x607A, 0, 2, 32)

	o, ok := m.Lookup(0x6040, 0)
	if !ok || o.ByteOff != 0 || o.BitLength != 16 {
		t.Fatalf("unexpected offset for controlword: %+v ok=%v", o, ok)
	}
	if !m.Mapped(0x607A, 0) {
		t.Fatalf("expected 0x607A mapped")
	}
	if m.Mapped(0x6041, 0) {
		t.Fatalf("did not expect 0x6041 mapped")
	}
}

func TestI32WraparoundRoundTrip(t *testing.T) {
	img := make([]byte, 8)
	o := Offset{ByteOff: 2, BitLength: 32}

	cases := []int32{0, 1, -1, 2147483647, -2147483648, -100000}
	for _, v := range cases {
		WriteI32(img, o, v)
		if got := ReadI32(img, o); got != v {
			t.Fatalf("roundtrip mismatch for %d: got %d", v, got)
		}
	}
}

func TestU16RoundTrip(t *testing.T) {
	img := make([]byte, 4)
	o := Offset{ByteOff: 0, BitLength: 16}
	WriteU16(img, o, 0x0027)
	if got := ReadU16(img, o); got != 0x0027 {
		t.Fatalf("got %#x", got)
	}
}

func TestReadWriteBytes(t *testing.T) {
	img := make([]byte, 8)
	o := Offset{ByteOff: 1, BitLength: 32}
	WriteBytes(img, o, []byte{1, 2, 3, 4})
	if got := ReadBytes(img, o); string(got) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("got %v", got)
	}
}
