package echonet_lite

import "fmt"

// EPC is an ECHONET property code.
type EPC byte

func (e EPC) String() string {
	return fmt.Sprintf("%02X", byte(e))
}

// Well-known property map EPCs (spec §3/§4.G).
const (
	EPCStatusAnnouncePropertyMap EPC = 0x9D
	EPCSetPropertyMap            EPC = 0x9E
	EPCGetPropertyMap            EPC = 0x9F
)

// EPCInstanceListNotification is the node-profile property carrying the
// instance-list notification payload (spec §4.G).
const EPCInstanceListNotification EPC = 0xD5

// Property is a single wire-level (EPC, EDT) pair. PDC is implicit in
// len(EDT) and is never stored separately.
type Property struct {
	EPC EPC
	EDT []byte
}

// ForGet returns the EPC-only form of this property (PDC=0) used when
// building Get/SetGet-get-list requests.
func (p Property) ForGet() Property {
	return Property{EPC: p.EPC}
}

func (p Property) Encode() []byte {
	out := make([]byte, 2+len(p.EDT))
	out[0] = byte(p.EPC)
	out[1] = byte(len(p.EDT))
	copy(out[2:], p.EDT)
	return out
}

// Properties is an ordered operation list (EPC,PDC,EDT triples) as carried
// in a Format-1 frame, prefixed on the wire by a one-byte OPC.
type Properties []Property

// MaxOperationCount is the largest OPC a single Properties list may encode
// (spec §4.A: "a list of more than 255 operations is a caller error").
const MaxOperationCount = 255

func (ps Properties) Encode() ([]byte, error) {
	if len(ps) > MaxOperationCount {
		return nil, fmt.Errorf("echonet_lite: operation list has %d entries, max %d", len(ps), MaxOperationCount)
	}
	out := make([]byte, 1, 1+len(ps)*2)
	out[0] = byte(len(ps))
	for _, p := range ps {
		out = append(out, p.Encode()...)
	}
	return out, nil
}

func parseProperties(data []byte, pos int) (int, Properties, error) {
	if pos >= len(data) {
		return pos, nil, fmt.Errorf("echonet_lite: truncated frame, missing OPC at %d", pos)
	}
	opc := int(data[pos])
	pos++
	props := make(Properties, 0, opc)
	for i := 0; i < opc; i++ {
		if pos+2 > len(data) {
			return pos, nil, fmt.Errorf("echonet_lite: truncated frame, missing EPC/PDC for operation %d", i)
		}
		epc := EPC(data[pos])
		pdc := int(data[pos+1])
		pos += 2
		var edt []byte
		if pdc > 0 {
			if pos+pdc > len(data) {
				return pos, nil, fmt.Errorf("echonet_lite: truncated frame, EDT underrun for operation %d", i)
			}
			edt = append([]byte(nil), data[pos:pos+pdc]...)
			pos += pdc
		}
		props = append(props, Property{EPC: epc, EDT: edt})
	}
	return pos, props, nil
}

// HasPDCZero reports whether p carries no EDT, the wire signal used
// throughout the service engine (inbound success-echo, outbound
// apply-on-PDC-zero rules).
func (p Property) HasPDCZero() bool {
	return len(p.EDT) == 0
}
