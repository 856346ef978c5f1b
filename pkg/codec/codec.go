/*
Copyright 2023 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package codec

import (
	"bytes"

	"github.com/kusanagi/katana-sdk-go/pkg/common"

	"github.com/nuclio/errors"
	"github.com/vmihailenco/msgpack/v4"
)

var (

	// ErrMalformedEnvelope is the root cause of every failure to decode wire data
	ErrMalformedEnvelope = errors.New("Malformed envelope")

	// ErrEncoding is the root cause of every failure to encode a reply
	ErrEncoding = errors.New("Encoding failed")
)

// Codec encodes and decodes the payloads carried inside envelope frames
type Codec interface {

	// Encode serializes value using the compact field names declared in its msgpack tags
	Encode(value interface{}) ([]byte, error)

	// Decode deserializes data into target, which must be a pointer
	Decode(data []byte, target interface{}) error

	// DecodeMap deserializes data that is expected to hold a string keyed map
	DecodeMap(data []byte) (map[string]interface{}, error)
}

// MsgPack is the msgpack implementation of Codec
type MsgPack struct{}

func NewMsgPack() *MsgPack {
	return &MsgPack{}
}

func (mp *MsgPack) Encode(value interface{}) ([]byte, error) {
	var buf bytes.Buffer

	encoder := msgpack.NewEncoder(&buf)
	encoder.UseCompactEncoding(true)

	if err := encoder.Encode(value); err != nil {
		return nil, errors.Wrapf(ErrEncoding, "Failed to encode %T: %s", value, err.Error())
	}

	return buf.Bytes(), nil
}

func (mp *MsgPack) Decode(data []byte, target interface{}) error {
	if len(data) == 0 {
		return errors.Wrap(ErrMalformedEnvelope, "Empty payload")
	}

	decoder := msgpack.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(target); err != nil {
		return errors.Wrapf(ErrMalformedEnvelope, "Failed to decode %T: %s", target, err.Error())
	}

	return nil
}

func (mp *MsgPack) DecodeMap(data []byte) (map[string]interface{}, error) {
	var decoded interface{}

	if err := mp.Decode(data, &decoded); err != nil {
		return nil, err
	}

	decodedMap, isMap := common.NormalizeValue(decoded).(map[string]interface{})
	if !isMap {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "Expected a map, got %T", decoded)
	}

	return decodedMap, nil
}
