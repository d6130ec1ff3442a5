package serialization

import "github.com/disciplinator/disciplinator/pkg/serialization/codec"

// Serializer provides methods to encode and decode using a specified codec.
type Serializer struct {
	codec codec.Codec
}

// NewSerializer initializes a new Serializer with the given codec.
func NewSerializer(c codec.Codec) *Serializer {
	return &Serializer{codec: c}
}

// NewCanonical returns a Serializer backed by canonical CBOR, the encoding of
// every record kept in the key-value store.
func NewCanonical() (*Serializer, error) {
	c, err := codec.NewCBORCodec()
	if err != nil {
		return nil, err
	}
	return NewSerializer(c), nil
}

// Encode serializes the given value using the codec.
func (s *Serializer) Encode(v interface{}) ([]byte, error) {
	return s.codec.Marshal(v)
}

// Decode deserializes the given data into the specified value using the codec.
func (s *Serializer) Decode(data []byte, v interface{}) error {
	return s.codec.Unmarshal(data, v)
}
