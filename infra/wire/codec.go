package wire

import "github.com/cockroachdb/errors"

// CodecName is the gRPC content-subtype served by Codec.
const CodecName = "clobwire"

// Codec lets gRPC carry Message values. It satisfies
// google.golang.org/grpc/encoding.Codec.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, errors.Newf("wire: %T is not a wire message", v)
	}
	return m.Marshal(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return errors.Newf("wire: %T is not a wire message", v)
	}
	return m.Unmarshal(data)
}

func (Codec) Name() string { return CodecName }
