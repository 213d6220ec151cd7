package config

import "testing"

func TestParseUint64Forms(t *testing.T) {
	cases := map[string]uint64{
		"100":   100,
		"0x64":  0x64,
		"0X64":  0x64,
		"#x64":  0x64,
		"64h":   0x64,
	}
	for in, want := range cases {
		got, err := ParseUint64(in)
		if err != nil {
			t.Fatalf("ParseUint64(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseUint64(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestValidateRequiresVendorProduct(t *testing.T) {
	nc := DefaultNetworkConfig()
	nc.Drives = []DriveConfig{{Position: 0}}
	if err := nc.Validate(); err == nil {
		t.Fatalf("expected validation error for missing vendor/product id")
	}
}

func TestValidateRejectsDuplicatePositions(t *testing.T) {
	nc := DefaultNetworkConfig()
	nc.Drives = []DriveConfig{
		{Position: 0, VendorID: 1, ProductCode: 1},
		{Position: 0, VendorID: 2, ProductCode: 2},
	}
	if err := nc.Validate(); err == nil {
		t.Fatalf("expected validation error for duplicate position")
	}
}

func TestSortedDrives(t *testing.T) {
	nc := DefaultNetworkConfig()
	nc.Drives = []DriveConfig{
		{Position: 2, VendorID: 1, ProductCode: 1},
		{Position: 0, VendorID: 1, ProductCode: 1},
		{Position: 1, VendorID: 1, ProductCode: 1},
	}
	sorted := nc.SortedDrives()
	for i, d := range sorted {
		if d.Position != i {
			t.Fatalf("sorted[%d].Position = %d", i, d.Position)
		}
	}
}

func TestParseOperationMode(t *testing.T) {
	cases := map[string]int{"pp": 1, "PV": 3, "csp": 8, "10": 10, "": 1}
	for in, want := range cases {
		got, err := parseOperationMode(in)
		if err != nil {
			t.Fatalf("parseOperationMode(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("parseOperationMode(%q) = %d, want %d", in, got, want)
		}
	}
}
