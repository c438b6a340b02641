package echonet_lite

import "fmt"

// MaxInstanceListEntries is the largest instance list that fits the
// InstanceListBufferSize buffer (1 count byte + 84*3 EOJ bytes = 253), and
// the value spec §4.G caps announce at.
const MaxInstanceListEntries = 84

// InstanceListBufferSize is the fixed EDT size self-node instance-list
// properties are padded to (spec §4.G: "trailing bytes of the 253-byte max
// buffer are zeroed").
const InstanceListBufferSize = 253

// InstanceList is the decoded form of EPC 0xD5 (instance list
// notification): the EOJs of a node's device instances.
type InstanceList []EOJ

func (l InstanceList) Encode() ([]byte, error) {
	if len(l) > MaxInstanceListEntries {
		return nil, fmt.Errorf("echonet_lite: instance list has %d entries, max %d", len(l), MaxInstanceListEntries)
	}
	out := make([]byte, 1, 1+len(l)*3)
	out[0] = byte(len(l))
	for _, eoj := range l {
		out = append(out, eoj.Encode()...)
	}
	return out, nil
}

// EncodePadded encodes l the way a self-node announce buffer does: a
// 1-byte count, 3 bytes per EOJ, zero-padded to InstanceListBufferSize.
func (l InstanceList) EncodePadded() ([]byte, error) {
	raw, err := l.Encode()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, InstanceListBufferSize)
	copy(buf, raw)
	return buf, nil
}

func DecodeInstanceList(edt []byte) (InstanceList, error) {
	if len(edt) < 1 {
		return nil, fmt.Errorf("echonet_lite: instance list EDT too short")
	}
	n := int(edt[0])
	if len(edt) < 1+n*3 {
		return nil, fmt.Errorf("echonet_lite: instance list EDT truncated: want %d entries, have %d bytes", n, len(edt)-1)
	}
	out := make(InstanceList, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, DecodeEOJ(edt[1+i*3:4+i*3]))
	}
	return out, nil
}
