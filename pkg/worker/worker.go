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
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kusanagi/katana-sdk-go/pkg/codec"
	"github.com/kusanagi/katana-sdk-go/pkg/transport"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// Worker holds all the required state to serve requests relayed by the proxy backend, one at a time
type Worker struct {

	// accessed atomically, keep as first field for alignment
	statistics Statistics

	logger      logger.Logger
	index       int
	processor   Processor
	endpoint    *transport.Endpoint
	conn        *transport.Conn
	connLock    sync.Mutex
	requestTime atomic.Pointer[time.Time]
	stopped     int32
}

// NewWorker creates a new worker
func NewWorker(parentLogger logger.Logger,
	index int,
	endpoint *transport.Endpoint,
	processor Processor) (*Worker, error) {

	if processor == nil {
		return nil, errors.New("Worker requires a processor")
	}

	return &Worker{
		logger:    parentLogger,
		index:     index,
		endpoint:  endpoint,
		processor: processor,
	}, nil
}

// Connect dials the proxy backend and announces the worker as ready
func (w *Worker) Connect() error {
	conn, err := transport.Dial(w.endpoint)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to backend")
	}

	if err := conn.WriteFrames([][]byte{[]byte(ReadyFrame)}); err != nil {
		conn.Close() // nolint: errcheck
		return errors.Wrap(err, "Failed to announce worker")
	}

	w.connLock.Lock()
	defer w.connLock.Unlock()

	// stopped while dialing
	if w.isStopped() {
		conn.Close() // nolint: errcheck
		return nil
	}

	w.conn = conn

	w.logger.DebugWith("Worker connected", "workerIndex", w.index, "endpoint", w.endpoint.String())
	return nil
}

// Run serves requests until the connection is closed. a stopped worker returns nil
func (w *Worker) Run() error {
	w.connLock.Lock()
	conn := w.conn
	w.connLock.Unlock()

	if conn == nil {
		if w.isStopped() {
			return nil
		}

		return errors.New("Worker is not connected")
	}

	for {
		frames, err := conn.ReadFrames()
		if err != nil {
			if w.isStopped() || err == io.EOF {
				w.logger.DebugWith("Worker exiting", "workerIndex", w.index)
				return nil
			}

			return errors.Wrap(err, "Failed to read request")
		}

		if _, err := DecodeRoutingID(frames); err != nil {
			w.logger.WarnWith("Dropping message without routing id", "workerIndex", w.index, "numFrames", len(frames))
			continue
		}

		reply := w.ProcessRequest(frames[1:])

		if err := conn.WriteFrames(append([][]byte{frames[0]}, reply...)); err != nil {
			if w.isStopped() {
				return nil
			}

			return errors.Wrap(err, "Failed to write reply")
		}
	}
}

// ProcessRequest passes a frame set to the processor, timing it
func (w *Worker) ProcessRequest(frames [][]byte) [][]byte {
	startTime := time.Now()
	w.requestTime.Store(&startTime)

	reply := w.processor.Process(frames)

	w.requestTime.Store(nil)
	atomic.AddUint64(&w.statistics.RequestsHandled, 1)
	atomic.AddUint64(&w.statistics.RequestsDurationMicroSecondsSum, uint64(time.Since(startTime).Microseconds()))

	if len(reply) != codec.ReplyFrameCount {
		w.logger.WarnWith("Processor returned an invalid reply", "workerIndex", w.index, "numFrames", len(reply))
		return codec.FailureReplyFrames()
	}

	return reply
}

// GetStatistics returns a pointer to the statistics object. This must not be modified by the reader
func (w *Worker) GetStatistics() *Statistics {
	return &w.statistics
}

// GetProcessor returns the processor of the worker, as specified during creation
func (w *Worker) GetProcessor() Processor {
	return w.processor
}

// GetIndex returns the index of the worker, as specified during creation
func (w *Worker) GetIndex() int {
	return w.index
}

// GetRequestTime returns the time the current request started, nil if we're not handling one
func (w *Worker) GetRequestTime() *time.Time {
	return w.requestTime.Load()
}

// Stop closes the backend connection, which unblocks a pending read. safe to call more than once
func (w *Worker) Stop() error {
	if !atomic.CompareAndSwapInt32(&w.stopped, 0, 1) {
		return nil
	}

	w.connLock.Lock()
	defer w.connLock.Unlock()

	w.logger.DebugWith("Stopping worker", "workerIndex", w.index)

	if w.conn == nil {
		return nil
	}

	return w.conn.Close()
}

func (w *Worker) isStopped() bool {
	return atomic.LoadInt32(&w.stopped) == 1
}
