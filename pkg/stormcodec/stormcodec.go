// Package stormcodec provides the record codecs usable by the Storm database.
//
// Documents decoded into an interface value (e.g. a todo content) are always
// maps keyed by strings, whatever the codec.
package stormcodec

import (
	"bytes"
	"reflect"

	storm "github.com/asdine/storm/v3/codec"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
)

// Codec names.
const (
	MessagePack = "msgpack"
	CBOR        = "cbor"
	Binc        = "binc"
)

var (
	// CBORCodec encodes to and decodes from CBOR (Concise Binary Object Representation).
	// http://cbor.io/
	// https://tools.ietf.org/html/rfc7049
	CBORCodec storm.MarshalUnmarshaler = &ugorjiCodec{name: CBOR, handle: cborHandle()}

	// BincCodec encodes to and decodes from Binc.
	// See https://github.com/ugorji/binc
	BincCodec storm.MarshalUnmarshaler = &ugorjiCodec{name: Binc, handle: bincHandle()}
)

// ByName returns the codec registered with the given name.
// An empty name returns MessagePack.
func ByName(name string) (storm.MarshalUnmarshaler, error) {
	switch name {
	case MessagePack, "":
		return msgpack.Codec, nil
	case CBOR:
		return CBORCodec, nil
	case Binc:
		return BincCodec, nil
	default:
		return nil, errors.Errorf("unknown storm codec: %s", name)
	}
}

var mapType = reflect.TypeOf(map[string]any(nil))

func cborHandle() codec.Handle {
	h := new(codec.CborHandle)
	h.MapType = mapType
	return h
}

func bincHandle() codec.Handle {
	h := new(codec.BincHandle)
	h.MapType = mapType
	return h
}

type ugorjiCodec struct {
	name   string
	handle codec.Handle
}

func (c *ugorjiCodec) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := codec.NewEncoder(&b, c.handle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c *ugorjiCodec) Unmarshal(b []byte, v any) error {
	dec := codec.NewDecoderBytes(b, c.handle)
	return dec.Decode(v)
}

func (c *ugorjiCodec) Name() string {
	return c.name
}
