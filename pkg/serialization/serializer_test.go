package serialization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disciplinator/disciplinator/pkg/serialization"
	"github.com/disciplinator/disciplinator/pkg/serialization/codec"
)

type PayloadExample struct {
	ID    int     `json:"id" cbor:"1,keyasint"`
	Data  []byte  `json:"data" cbor:"2,keyasint"`
	Label *string `json:"label,omitempty" cbor:"3,keyasint,omitempty"`
}

func TestJSONSerializer(t *testing.T) {
	jsonCodec := &codec.JSONCodec{}
	serializer := serialization.NewSerializer(jsonCodec)

	example := PayloadExample{ID: 1, Data: []byte{1, 2, 3}}

	// Test Encoding
	encoded, err := serializer.Encode(&example)
	require.NoError(t, err)
	require.NotNil(t, encoded)

	// Test Decoding
	var decoded PayloadExample
	err = serializer.Decode(encoded, &decoded)
	require.NoError(t, err)
	assert.Equal(t, example, decoded)
}

func TestCanonicalSerializer(t *testing.T) {
	serializer, err := serialization.NewCanonical()
	require.NoError(t, err)

	label := "morning run"
	example := PayloadExample{ID: 2, Data: []byte{1, 2, 3}, Label: &label}

	encoded, err := serializer.Encode(example)
	require.NoError(t, err)

	var decoded PayloadExample
	err = serializer.Decode(encoded, &decoded)
	require.NoError(t, err)
	assert.Equal(t, example, decoded)

	// Equal values encode to equal bytes.
	again, err := serializer.Encode(PayloadExample{ID: 2, Data: []byte{1, 2, 3}, Label: &label})
	require.NoError(t, err)
	assert.Equal(t, encoded, again)
}

func TestCanonicalSerializerRejectsGarbage(t *testing.T) {
	serializer, err := serialization.NewCanonical()
	require.NoError(t, err)

	var decoded PayloadExample
	err = serializer.Decode([]byte{0xff, 0x00}, &decoded)
	assert.Error(t, err)
}
