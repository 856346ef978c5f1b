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
	"sync"
	"sync/atomic"
	"time"

	"github.com/kusanagi/katana-sdk-go/pkg/transport"

	"github.com/nuclio/logger"
)

// client is a frontend connection. replies are queued and written by the client's own goroutine,
// so a caller that stops reading only ever loses its own connection
type client struct {
	logger       logger.Logger
	conn         *transport.Conn
	outbound     chan [][]byte
	writeTimeout time.Duration
	statistics   *Statistics
	closed       chan struct{}
	closeOnce    sync.Once
}

func newClient(parentLogger logger.Logger,
	conn *transport.Conn,
	queueSize int,
	writeTimeout time.Duration,
	statistics *Statistics) *client {

	return &client{
		logger:       parentLogger,
		conn:         conn,
		outbound:     make(chan [][]byte, queueSize),
		writeTimeout: writeTimeout,
		statistics:   statistics,
		closed:       make(chan struct{}),
	}
}

// send queues a reply without blocking. a client whose queue is full is dropped
func (c *client) send(frames [][]byte) bool {
	if c.isClosed() {
		return false
	}

	select {
	case c.outbound <- frames:
		return true
	default:
		c.logger.WarnWith("Caller is not reading replies, dropping connection", "queueSize", cap(c.outbound))

		atomic.AddUint64(&c.statistics.ClientsDropped, 1)
		c.close()

		return false
	}
}

// writeReplies drains the outbound queue until the client is closed
func (c *client) writeReplies() {
	for {
		select {
		case frames := <-c.outbound:
			if err := c.conn.WriteFramesWithTimeout(frames, c.writeTimeout); err != nil {
				c.logger.DebugWith("Failed to write reply, dropping connection", "err", err.Error())

				atomic.AddUint64(&c.statistics.ClientsDropped, 1)
				c.close()

				return
			}

			atomic.AddUint64(&c.statistics.RepliesSent, 1)

		case <-c.closed:
			return
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close() // nolint: errcheck
	})
}

func (c *client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
