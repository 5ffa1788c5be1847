package server

import (
	"github.com/fxamacker/cbor/v2"
)

// cborCodec carries plain Go message structs over both Connect and gRPC.
// The same value satisfies connect.Codec and grpc's encoding.Codec.
type cborCodec struct{}

var cborEnc cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("server: cbor enc mode: " + err.Error())
	}
	cborEnc = em
}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(v any) ([]byte, error) {
	return cborEnc.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
