package echonet_lite

import (
	"encoding/json"
	"fmt"
)

// debugFrame is the JSON debug rendering contract from spec §4.A: EHD1/EHD2
// as two-digit upper-hex strings, TID as its four-digit upper-hex wire-byte
// order (byte-swapped relative to the natural big-endian reading of the
// value), SEOJ/DEOJ as 6-digit upper-hex, ESV as two-digit upper-hex.
type debugFrame struct {
	EHD1    string            `json:"EHD1"`
	EHD2    string            `json:"EHD2"`
	TID     string            `json:"TID"`
	SEOJ    string            `json:"SEOJ,omitempty"`
	DEOJ    string            `json:"DEOJ,omitempty"`
	ESV     string            `json:"ESV,omitempty"`
	OPC     []debugProperty   `json:"OPC,omitempty"`
	OPC2    []debugProperty   `json:"OPC2,omitempty"`
	Format2 string            `json:"EDATA,omitempty"`
}

type debugProperty struct {
	EPC string `json:"EPC"`
	PDC int    `json:"PDC"`
	EDT string `json:"EDT,omitempty"`
}

// DebugTID renders t the way the wire carries it: low byte then high byte,
// each as two upper-hex digits. TID 0x0001 renders as "0100"; TID 0xFFFF
// renders as "FFFF".
func DebugTID(t TID) string {
	b := t.wireBytes()
	return fmt.Sprintf("%02X%02X", b[0], b[1])
}

func debugProperties(ps Properties) []debugProperty {
	if ps == nil {
		return nil
	}
	out := make([]debugProperty, len(ps))
	for i, p := range ps {
		out[i] = debugProperty{
			EPC: fmt.Sprintf("%02X", byte(p.EPC)),
			PDC: len(p.EDT),
			EDT: fmt.Sprintf("%X", p.EDT),
		}
	}
	return out
}

// MarshalJSON renders f in the hex-string debug form used by round-trip
// tests (spec §4.A/§6). It is a debugging aid, not the wire codec.
func (f *Frame) MarshalJSON() ([]byte, error) {
	d := debugFrame{
		EHD1: fmt.Sprintf("%02X", byte(EHD1ECHONETLite)),
		EHD2: fmt.Sprintf("%02X", byte(f.EHD2)),
		TID:  DebugTID(f.TID),
	}
	switch f.EHD2 {
	case EHD2Format1:
		m := f.Format1
		d.SEOJ = fmt.Sprintf("%06X", uint32(m.SEOJ))
		d.DEOJ = fmt.Sprintf("%06X", uint32(m.DEOJ))
		d.ESV = fmt.Sprintf("%02X", byte(m.ESV))
		d.OPC = debugProperties(m.OPC)
		if m.ESV.IsSetGet() {
			d.OPC2 = debugProperties(m.OPC2)
		}
	case EHD2Format2:
		d.Format2 = fmt.Sprintf("%X", f.Format2)
	}
	return json.Marshal(d)
}
