package network

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// rawCodec overrides grpc's default "proto" codec with a pass-through
// one that only ever sees []byte. This module has no .proto-generated
// stubs: the request/response framing is JSON (see wire.go), and grpc
// is used purely as the peer RPC fabric — the connection pool, method
// dispatch and per-call context the teacher's relt dependency would
// otherwise provide. Overriding the "proto" codec name this way is the
// same trick transparent grpc proxies use to forward arbitrary payloads
// without a shared IDL.
type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	default:
		return nil, fmt.Errorf("network: rawCodec cannot marshal %T", v)
	}
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("network: rawCodec cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(rawCodec{})
}
