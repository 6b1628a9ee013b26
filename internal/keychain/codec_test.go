package keychain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name    string
		want    Codec
		wantErr bool
	}{
		{name: "", want: JSON},
		{name: "json", want: JSON},
		{name: "cbor", want: CBOR},
		{name: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := CodecByName(tt.name)
			if tt.wantErr {
				assert.ErrorContains(t, err, "unknown codec")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Name(), c.Name())
		})
	}
}

func TestCodecDecodeAny(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Encode(map[string]any{"user": "a", "tags": []string{"x"}})
			require.NoError(t, err)

			var v any
			require.NoError(t, c.Decode(data, &v))
			m, ok := v.(map[string]any)
			require.True(t, ok, "got %T", v)
			assert.Equal(t, "a", m["user"])
			assert.Equal(t, []any{"x"}, m["tags"])
		})
	}
}

func TestCodecRejectsEmptyPayloads(t *testing.T) {
	tests := []struct {
		codec Codec
		data  []byte
	}{
		{codec: JSON, data: nil},
		{codec: JSON, data: []byte(" null ")},
		{codec: JSON, data: []byte(`"a" "b"`)},
		{codec: CBOR, data: nil},
		{codec: CBOR, data: []byte{0xf6}},
		{codec: CBOR, data: []byte{0xf7}},
	}

	for _, tt := range tests {
		t.Run(tt.codec.Name(), func(t *testing.T) {
			var s string
			assert.Error(t, tt.codec.Decode(tt.data, &s))
		})
	}
}
