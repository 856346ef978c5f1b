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
	"github.com/nuclio/errors"
)

// reply metadata is a bitmask describing what the gateway must do with the reply
const (
	MetadataEmpty        byte = 0x00
	MetadataFailure      byte = 0x00
	MetadataServiceCalls byte = 0x01
	MetadataFiles        byte = 0x02
	MetadataTransactions byte = 0x04
	MetadataDownload     byte = 0x08
)

const (
	CommandFrameCount = 3
	ReplyFrameCount   = 2
)

// CommandEnvelope is a request as received from the gateway
type CommandEnvelope struct {
	ComponentType string

	// nil when the gateway sent no mapping
	Mapping []byte
	Command []byte
}

// ParseCommandEnvelope reads the component type, mapping and command frames
func ParseCommandEnvelope(frames [][]byte) (*CommandEnvelope, error) {
	if len(frames) != CommandFrameCount {
		return nil, errors.Wrapf(ErrMalformedEnvelope,
			"Expected %d frames, got %d", CommandFrameCount, len(frames))
	}

	envelope := CommandEnvelope{
		ComponentType: string(frames[0]),
		Command:       frames[2],
	}

	if len(frames[1]) > 0 {
		envelope.Mapping = frames[1]
	}

	return &envelope, nil
}

// Frames returns the wire representation of the envelope
func (ce *CommandEnvelope) Frames() [][]byte {
	return [][]byte{[]byte(ce.ComponentType), ce.Mapping, ce.Command}
}

// ReplyFrames builds the two frame reply
func ReplyFrames(metadata byte, payload []byte) [][]byte {
	if payload == nil {
		payload = []byte{}
	}

	return [][]byte{{metadata}, payload}
}

// FailureReplyFrames is the reply sent when not even an error payload could be produced
func FailureReplyFrames() [][]byte {
	return ReplyFrames(MetadataFailure, nil)
}
