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

package worker

import (
	"encoding/binary"

	"github.com/kusanagi/katana-sdk-go/pkg/processor"

	"github.com/nuclio/errors"
)

// ReadyFrame is sent by a worker once it connected to the backend
const ReadyFrame = "READY"

const routingIDSize = 8

var errMissingRoutingID = errors.New("Message has no routing id")

// Processor handles a single request frame set and always returns a reply
type Processor interface {
	Process(frames [][]byte) [][]byte
	GetStatistics() *processor.Statistics
}

type Statistics struct {
	RequestsHandled                 uint64
	RequestsDurationMicroSecondsSum uint64
}

// DiffFrom returns the difference between this snapshot and a previous one
func (s *Statistics) DiffFrom(prev *Statistics) Statistics {

	// atomicity isn't guaranteed here since the counters may change during the copy
	return Statistics{
		RequestsHandled:                 s.RequestsHandled - prev.RequestsHandled,
		RequestsDurationMicroSecondsSum: s.RequestsDurationMicroSecondsSum - prev.RequestsDurationMicroSecondsSum,
	}
}

// EncodeRoutingID returns the frame carrying a routing id
func EncodeRoutingID(routingID uint64) []byte {
	frame := make([]byte, routingIDSize)
	binary.BigEndian.PutUint64(frame, routingID)

	return frame
}

// DecodeRoutingID reads the routing id from the first frame of a backend message
func DecodeRoutingID(frames [][]byte) (uint64, error) {
	if len(frames) == 0 || len(frames[0]) != routingIDSize {
		return 0, errMissingRoutingID
	}

	return binary.BigEndian.Uint64(frames[0]), nil
}

// IsReady returns true for the message a worker sends when it connects
func IsReady(frames [][]byte) bool {
	return len(frames) == 1 && string(frames[0]) == ReadyFrame
}
