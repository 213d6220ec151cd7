package esi

import (
	"strings"
	"testing"
)

const sampleESI = `<?xml version="1.0"?>
<EtherCATInfo>
  <Descriptions>
    <Devices>
      <Device>
        <Type ProductCode="#x00000001" RevisionNo="#x00010000">SampleDrive</Type>
        <Name>Sample Servo Drive</Name>
        <Sm Index="2" Dir="out">
          <Pdo Index="0x1600">
            <Entry><Index>0x6040</Index><SubIndex>0</SubIndex><BitLen>16</BitLen></Entry>
            <Entry><Index>0x607A</Index><SubIndex>0</SubIndex><BitLen>32</BitLen></Entry>
          </Pdo>
        </Sm>
        <Sm Index="3" Dir="in">
          <Pdo Index="0x1A00">
            <Entry><Index>0x6041</Index><SubIndex>0</SubIndex><BitLen>16</BitLen></Entry>
            <Entry><Index>0x6064</Index><SubIndex>0</SubIndex><BitLen>32</BitLen></Entry>
          </Pdo>
        </Sm>
      </Device>
    </Devices>
  </Descriptions>
</EtherCATInfo>`

func TestDecodeBasic(t *testing.T) {
	desc, err := decode(strings.NewReader(sampleESI), 0, 0, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !desc.Supports.Controlword || !desc.Supports.Statusword {
		t.Fatalf("expected controlword/statusword mapped: %+v", desc.Supports)
	}
	if !desc.Supports.ModesPP || !desc.Supports.ModesCSP {
		t.Fatalf("expected PP/CSP support via 0x607A: %+v", desc.Supports)
	}
	if desc.Identity.ProductCode != 1 {
		t.Fatalf("got product code %#x", desc.Identity.ProductCode)
	}
	if len(desc.RxEntries) != 2 || len(desc.TxEntries) != 2 {
		t.Fatalf("got rx=%v tx=%v", desc.RxEntries, desc.TxEntries)
	}
}

func TestParseIntForms(t *testing.T) {
	cases := map[string]int64{
		"10":        10,
		"0x10":      16,
		"0X10":      16,
		"#x10":      16,
		"10h":       16,
		"10H":       16,
	}
	for in, want := range cases {
		got, ok := parseIntOK(in)
		if !ok || got != want {
			t.Fatalf("parseIntOK(%q) = %d,%v want %d", in, got, ok, want)
		}
	}
}
