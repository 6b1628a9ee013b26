package keychain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Codec turns values into item payloads and back.
//
// Decode must fail when data does not hold a value of v's type: unknown
// fields, a different shape, or an empty/null payload.
type Codec interface {
	Name() string
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

var errNoValue = errors.New("payload holds no value")

var (
	// JSON encodes values with encoding/json. It is the default codec.
	JSON Codec = jsonCodec{}

	// CBOR encodes values as deterministic CBOR (RFC 8949 core rules).
	CBOR Codec = newCBORCodec()
)

// CodecByName returns the codec registered under name ("json" or "cbor").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Decode(data []byte, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errNoValue
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after value")
	}
	return nil
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		// decode into any like encoding/json does
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborCodec{enc: enc, dec: dec}
}

func (c cborCodec) Name() string { return "cbor" }

func (c cborCodec) Encode(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c cborCodec) Decode(data []byte, v any) error {
	// 0xf6 is null, 0xf7 is undefined
	if len(data) == 0 || (len(data) == 1 && (data[0] == 0xf6 || data[0] == 0xf7)) {
		return errNoValue
	}
	return c.dec.Unmarshal(data, v)
}
