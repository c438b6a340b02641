package echonet_lite

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustFormat1(t *testing.T, tid TID, seoj, deoj EOJ, esv ESV, opc, opc2 Properties) *Frame {
	t.Helper()
	f, err := NewFormat1Frame(tid, seoj, deoj, esv, opc, opc2)
	require.NoError(t, err)
	return f
}

// Scenario 1 (spec §8): Serialize SetI.
func TestSerializeSetI(t *testing.T) {
	f := mustFormat1(t, 0x0001,
		MakeEOJ(NodeProfileClassCode, 0x01),
		MakeEOJ(MakeEOJClassCode(0x05, 0xFF), 0x01),
		ESVSetI,
		Properties{{EPC: 0x80, EDT: []byte{0x30}}},
		nil,
	)
	got, err := f.Serialize()
	require.NoError(t, err)
	want := []byte{0x10, 0x81, 0x01, 0x00, 0x0E, 0xF0, 0x01, 0x05, 0xFF, 0x01, 0x60, 0x01, 0x80, 0x01, 0x30}
	require.Equal(t, want, got)
}

// Scenario 2 (spec §8): Serialize Get request.
func TestSerializeGetRequest(t *testing.T) {
	npo := MakeEOJ(NodeProfileClassCode, 0x01)
	f := mustFormat1(t, 0x1234, npo, npo, ESVGet,
		Properties{{EPC: 0x9D}, {EPC: 0x9E}, {EPC: 0x9F}}, nil)
	got, err := f.Serialize()
	require.NoError(t, err)
	want := []byte{
		0x10, 0x81, 0x34, 0x12,
		0x0E, 0xF0, 0x01, 0x0E, 0xF0, 0x01,
		0x62, 0x03, 0x9D, 0x00, 0x9E, 0x00, 0x9F, 0x00,
	}
	require.Equal(t, want, got)
}

func TestFormat1RoundTrip(t *testing.T) {
	cases := []*Frame{
		mustFormat1(t, 1, MakeEOJ(NodeProfileClassCode, 1), MakeEOJ(NodeProfileClassCode, 1), ESVSetI,
			Properties{{EPC: 0x80, EDT: []byte{0x30}}}, nil),
		mustFormat1(t, 0xFFFF, MakeEOJ(NodeProfileClassCode, 1), MakeEOJ(MakeEOJClassCode(0x01, 0x30), 1), ESVGet,
			Properties{{EPC: 0x80}, {EPC: 0x81}}, nil),
		mustFormat1(t, 42, MakeEOJ(NodeProfileClassCode, 1), MakeEOJ(MakeEOJClassCode(0x01, 0x30), 1), ESVSetGet,
			Properties{{EPC: 0x80, EDT: []byte{0x30}}},
			Properties{{EPC: 0x81}}),
		mustFormat1(t, 7, MakeEOJ(NodeProfileClassCode, 1), MakeEOJ(NodeProfileClassCode, 1), ESVINFC,
			Properties{{EPC: 0xE0, EDT: []byte{0x42}}}, nil),
	}
	for _, f := range cases {
		encoded, err := f.Serialize()
		require.NoError(t, err)
		decoded, err := Deserialize(encoded)
		require.NoError(t, err)
		if diff := cmp.Diff(f, decoded); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestFormat2RoundTrip(t *testing.T) {
	f := NewFormat2Frame(0x0102, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	encoded, err := f.Serialize()
	require.NoError(t, err)
	decoded, err := Deserialize(encoded)
	require.NoError(t, err)
	require.Equal(t, f, decoded)
}

func TestDeserializeRejectsBadEHD1(t *testing.T) {
	_, err := Deserialize([]byte{0x11, 0x81, 0, 0})
	require.Error(t, err)
}

func TestDeserializeRejectsTruncated(t *testing.T) {
	_, err := Deserialize([]byte{0x10, 0x81, 0, 0, 0x0E, 0xF0, 0x01})
	require.Error(t, err)
}

func TestNewFormat1FrameRejectsMismatchedSetGet(t *testing.T) {
	npo := MakeEOJ(NodeProfileClassCode, 1)
	_, err := NewFormat1Frame(1, npo, npo, ESVSetGet, Properties{{EPC: 0x80}}, nil)
	require.Error(t, err)

	_, err = NewFormat1Frame(1, npo, npo, ESVGet, Properties{{EPC: 0x80}}, Properties{{EPC: 0x81}})
	require.Error(t, err)
}

func TestOperationListTooLong(t *testing.T) {
	ps := make(Properties, MaxOperationCount+1)
	_, err := ps.Encode()
	require.Error(t, err)
}

func TestDebugTID(t *testing.T) {
	require.Equal(t, "0100", DebugTID(0x0001))
	require.Equal(t, "FFFF", DebugTID(0xFFFF))
	require.Equal(t, "3412", DebugTID(0x1234))
}

func TestMustSerializeMatchesSerialize(t *testing.T) {
	f := mustFormat1(t, 1, MakeEOJ(NodeProfileClassCode, 1), MakeEOJ(NodeProfileClassCode, 1), ESVSetI,
		Properties{{EPC: 0x80, EDT: []byte{0x30}}}, nil)
	want, err := f.Serialize()
	require.NoError(t, err)
	require.Equal(t, want, f.MustSerialize())
}

func TestMustSerializePanicsOnInvariantViolation(t *testing.T) {
	f := &Frame{EHD2: EHD2Format1} // Format1 left nil: invariant violation
	require.Panics(t, func() { f.MustSerialize() })
}

func TestMarshalJSON(t *testing.T) {
	f := mustFormat1(t, 1, MakeEOJ(NodeProfileClassCode, 1), MakeEOJ(NodeProfileClassCode, 1), ESVSetI,
		Properties{{EPC: 0x80, EDT: []byte{0x30}}}, nil)
	b, err := f.MarshalJSON()
	require.NoError(t, err)
	require.Contains(t, string(b), `"TID":"0100"`)
	require.Contains(t, string(b), `"EHD1":"10"`)
	require.Contains(t, string(b), `"EHD2":"81"`)
}
