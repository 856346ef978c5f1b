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

package proxy

import (
	"time"

	"github.com/kusanagi/katana-sdk-go/pkg/transport"

	"github.com/nuclio/errors"
)

// ErrQueueFull is the message of the reply sent when the backend queue is at capacity
var ErrQueueFull = errors.New("backend queue is full")

// ErrWorkerUnavailable is the message of the reply sent when a worker was lost with a request
var ErrWorkerUnavailable = errors.New("worker is unavailable")

const (
	DefaultClientQueueSize = 256
	DefaultWriteTimeout    = 10 * time.Second
)

type Configuration struct {

	// external endpoint the gateway connects to
	Frontend *transport.Endpoint

	// local endpoint workers connect to
	Backend *transport.Endpoint

	// maximum number of requests waiting for a ready worker. 0 means unbounded
	QueueSize int

	// maximum number of replies waiting to be written to one caller before it is dropped
	ClientQueueSize int

	// a caller that does not accept a reply within this long is dropped
	WriteTimeout time.Duration
}

type Statistics struct {
	RequestsReceived   uint64
	RequestsDispatched uint64
	RequestsRejected   uint64
	RepliesSent        uint64
	ClientsDropped     uint64
	WorkersLost        uint64

	// gauge, the number of requests currently waiting for a worker
	RequestsQueued int64
}

// DiffFrom returns the counters accumulated since a previous snapshot. the gauge is kept as is
func (s *Statistics) DiffFrom(prev *Statistics) Statistics {
	return Statistics{
		RequestsReceived:   s.RequestsReceived - prev.RequestsReceived,
		RequestsDispatched: s.RequestsDispatched - prev.RequestsDispatched,
		RequestsRejected:   s.RequestsRejected - prev.RequestsRejected,
		RepliesSent:        s.RepliesSent - prev.RepliesSent,
		ClientsDropped:     s.ClientsDropped - prev.ClientsDropped,
		WorkersLost:        s.WorkersLost - prev.WorkersLost,
		RequestsQueued:     s.RequestsQueued,
	}
}

type request struct {
	routingID uint64
	client    *client
	frames    [][]byte
}
