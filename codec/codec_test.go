package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type innerRecord struct {
	Name  string
	Value int
}

type outerRecord struct {
	ID    string
	Inner innerRecord
	Tags  []string
}

func TestMsgpackCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input outerRecord
	}{
		{
			name: "simple",
			input: outerRecord{
				ID:    "r1",
				Inner: innerRecord{Name: "a", Value: 1},
				Tags:  []string{"x", "y"},
			},
		},
		{
			name:  "zero value",
			input: outerRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Codec.Marshal(CurrentVersion, tt.input)
			require.NoError(t, err)

			var out outerRecord
			version, err := Codec.Unmarshal(data, &out)
			require.NoError(t, err)
			require.Equal(t, CurrentVersion, version)
			require.Equal(t, tt.input, out)
		})
	}
}

func TestMsgpackCodec_Determinism(t *testing.T) {
	in := outerRecord{ID: "same", Inner: innerRecord{Name: "n", Value: 7}, Tags: []string{"t"}}

	a, err := Codec.Marshal(CurrentVersion, in)
	require.NoError(t, err)
	b, err := Codec.Marshal(CurrentVersion, in)
	require.NoError(t, err)

	require.Equal(t, a, b, "identical values must canonicalize to identical bytes")
}

func TestMsgpackCodec_UnsupportedVersion(t *testing.T) {
	_, err := Codec.Marshal(Version(7), outerRecord{})
	require.Error(t, err)
}

func TestMsgpackCodec_UnmarshalInvalid(t *testing.T) {
	var out outerRecord
	_, err := Codec.Unmarshal([]byte{0xff, 0xff, 0xff}, &out)
	require.Error(t, err)
}
