package echonet_lite

import "fmt"

// EHD1 is the first frame header byte; ECHONET Lite frames always carry
// 0x10 here.
type EHD1 byte

const EHD1ECHONETLite EHD1 = 0x10

// EHD2 selects the EDATA variant: Format 1 (structured EOJ/ESV/operation
// list) or Format 2 (opaque, interpreted by external subprofiles).
type EHD2 byte

const (
	EHD2Format1 EHD2 = 0x81
	EHD2Format2 EHD2 = 0x82
)

func (h EHD2) String() string {
	switch h {
	case EHD2Format1:
		return "Format1"
	case EHD2Format2:
		return "Format2"
	default:
		return fmt.Sprintf("(%02X)", byte(h))
	}
}

// TID is the two-byte transaction identifier. It is transmitted
// little-endian on the wire (spec §3/§4.A) but always handled here as a
// plain 16-bit value.
type TID uint16

func (t TID) wireBytes() []byte {
	return []byte{byte(t), byte(t >> 8)}
}

func decodeTID(lo, hi byte) TID {
	return TID(lo) | TID(hi)<<8
}

// Format1Message is the structured EDATA payload: SEOJ, DEOJ, ESV, and one
// or two operation lists (two only for the SetGet family).
type Format1Message struct {
	SEOJ EOJ
	DEOJ EOJ
	ESV  ESV
	// OPC is the primary operation list: the sole list for most ESVs, and
	// the "set" list for the SetGet family.
	OPC Properties
	// OPC2 is the second operation list, present only for the SetGet
	// family (the "get" list); nil otherwise.
	OPC2 Properties
}

// Frame is a full ECHONET Lite frame: the two header bytes, the TID, and
// exactly one EDATA variant consistent with EHD2 (spec §3 invariant).
type Frame struct {
	EHD2    EHD2
	TID     TID
	Format1 *Format1Message // set iff EHD2 == EHD2Format1
	Format2 []byte          // opaque payload, set iff EHD2 == EHD2Format2
}

// NewFormat1Frame builds a Format-1 frame. opc2 must be nil unless esv is a
// SetGet-family service code, and must be non-nil when it is.
func NewFormat1Frame(tid TID, seoj, deoj EOJ, esv ESV, opc Properties, opc2 Properties) (*Frame, error) {
	if esv.IsSetGet() && opc2 == nil {
		return nil, fmt.Errorf("echonet_lite: %v requires a second operation list", esv)
	}
	if !esv.IsSetGet() && opc2 != nil {
		return nil, fmt.Errorf("echonet_lite: %v must not carry a second operation list", esv)
	}
	return &Frame{
		EHD2: EHD2Format1,
		TID:  tid,
		Format1: &Format1Message{
			SEOJ: seoj,
			DEOJ: deoj,
			ESV:  esv,
			OPC:  opc,
			OPC2: opc2,
		},
	}, nil
}

// NewFormat2Frame builds a Format-2 frame carrying an opaque payload.
func NewFormat2Frame(tid TID, payload []byte) *Frame {
	return &Frame{EHD2: EHD2Format2, TID: tid, Format2: payload}
}

// Serialize encodes f per spec §4.A. Returns an error if EHD2 and the
// populated variant disagree (invariant violation) or an operation list
// exceeds MaxOperationCount.
func (f *Frame) Serialize() ([]byte, error) {
	switch f.EHD2 {
	case EHD2Format1:
		if f.Format1 == nil {
			return nil, fmt.Errorf("echonet_lite: EHD2=Format1 but no Format1Message set")
		}
		return f.serializeFormat1()
	case EHD2Format2:
		if f.Format2 == nil {
			return nil, fmt.Errorf("echonet_lite: EHD2=Format2 but no payload set")
		}
		return f.serializeFormat2(), nil
	default:
		return nil, fmt.Errorf("echonet_lite: unknown EHD2 %02X", byte(f.EHD2))
	}
}

// MustSerialize is Serialize for callers that built f from already-validated
// in-memory state (e.g. a reply frame the inbound engine just constructed
// from NewFormat1Frame): it panics whenever Serialize would return an error,
// which covers both an EHD2/variant mismatch and an operation list longer
// than MaxOperationCount. Frames built from untrusted input go through
// Serialize instead.
func (f *Frame) MustSerialize() []byte {
	b, err := f.Serialize()
	if err != nil {
		panic(fmt.Sprintf("echonet_lite: MustSerialize: %v", err))
	}
	return b
}

func (f *Frame) serializeFormat1() ([]byte, error) {
	m := f.Format1
	opc, err := m.OPC.Encode()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 12+len(opc))
	out = append(out, byte(EHD1ECHONETLite), byte(f.EHD2))
	out = append(out, f.TID.wireBytes()...)
	out = append(out, m.SEOJ.Encode()...)
	out = append(out, m.DEOJ.Encode()...)
	out = append(out, byte(m.ESV))
	out = append(out, opc...)
	if m.ESV.IsSetGet() {
		opc2, err := m.OPC2.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, opc2...)
	}
	return out, nil
}

func (f *Frame) serializeFormat2() []byte {
	out := make([]byte, 0, 4+len(f.Format2))
	out = append(out, byte(EHD1ECHONETLite), byte(f.EHD2))
	out = append(out, f.TID.wireBytes()...)
	out = append(out, f.Format2...)
	return out
}

// minFormat1Len is EHD1(1)+EHD2(1)+TID(2)+SEOJ(3)+DEOJ(3)+ESV(1)+OPC(1).
const minFormat1Len = 12

// Deserialize parses a raw datagram into a Frame. It never panics; any
// length underrun, OPC/EDT mismatch, or unknown header byte is returned as
// an error so the caller (the receive path) can drop the datagram silently
// per spec §7.
func Deserialize(data []byte) (*Frame, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("echonet_lite: frame too short: %d bytes", len(data))
	}
	if EHD1(data[0]) != EHD1ECHONETLite {
		return nil, fmt.Errorf("echonet_lite: unexpected EHD1 %02X", data[0])
	}
	ehd2 := EHD2(data[1])
	tid := decodeTID(data[2], data[3])

	switch ehd2 {
	case EHD2Format1:
		msg, err := deserializeFormat1(data)
		if err != nil {
			return nil, err
		}
		return &Frame{EHD2: ehd2, TID: tid, Format1: msg}, nil
	case EHD2Format2:
		payload := append([]byte(nil), data[4:]...)
		return &Frame{EHD2: ehd2, TID: tid, Format2: payload}, nil
	default:
		return nil, fmt.Errorf("echonet_lite: unknown EHD2 %02X", byte(ehd2))
	}
}

func deserializeFormat1(data []byte) (*Format1Message, error) {
	if len(data) < minFormat1Len {
		return nil, fmt.Errorf("echonet_lite: Format-1 frame too short: %d bytes", len(data))
	}
	m := &Format1Message{
		SEOJ: DecodeEOJ(data[4:7]),
		DEOJ: DecodeEOJ(data[7:10]),
		ESV:  ESV(data[10]),
	}
	pos, props, err := parseProperties(data, 11)
	if err != nil {
		return nil, err
	}
	m.OPC = props
	if m.ESV.IsSetGet() {
		_, props2, err := parseProperties(data, pos)
		if err != nil {
			return nil, err
		}
		m.OPC2 = props2
	}
	return m, nil
}
