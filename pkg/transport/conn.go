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

package transport

import (
	"bufio"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kusanagi/katana-sdk-go/pkg/codec"
	"github.com/kusanagi/katana-sdk-go/pkg/common"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

const dialTimeout = 10 * time.Second

// Listen binds a listener to endpoint. a stale socket file left by a previous run is removed
func Listen(loggerInstance logger.Logger, endpoint *Endpoint) (net.Listener, error) {
	if endpoint.Scheme == SchemeIPC && !endpoint.IsAbstract() && common.FileExists(endpoint.Address) {
		if err := os.Remove(endpoint.Address); err != nil {
			return nil, errors.Wrapf(ErrTransport, "Can't remove socket at %q: %s", endpoint.Address, err.Error())
		}
	}

	loggerInstance.DebugWith("Creating listener socket", "endpoint", endpoint.String())

	listener, err := net.Listen(endpoint.Network(), endpoint.Address)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "Can't listen on %s: %s", endpoint.String(), err.Error())
	}

	return listener, nil
}

// Dial connects to a listening endpoint
func Dial(endpoint *Endpoint) (*Conn, error) {
	netConn, err := net.DialTimeout(endpoint.Network(), endpoint.Address, dialTimeout)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "Can't connect to %s: %s", endpoint.String(), err.Error())
	}

	return NewConn(netConn), nil
}

// Conn exchanges multi-frame messages over a stream connection. reads must come from a
// single goroutine, writes may come from several
type Conn struct {
	netConn   net.Conn
	reader    *bufio.Reader
	writeLock sync.Mutex
	closed    int32
}

func NewConn(netConn net.Conn) *Conn {
	return &Conn{
		netConn: netConn,
		reader:  bufio.NewReader(netConn),
	}
}

// ReadFrames blocks until a whole message arrives
func (c *Conn) ReadFrames() ([][]byte, error) {
	return codec.ReadFrames(c.reader)
}

func (c *Conn) WriteFrames(frames [][]byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	return codec.WriteFrames(c.netConn, frames)
}

// WriteFramesWithTimeout fails if the whole message could not be written within timeout. the
// connection should be dropped after such a failure since a partial message may have been sent
func (c *Conn) WriteFramesWithTimeout(frames [][]byte, timeout time.Duration) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if err := c.netConn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	defer c.netConn.SetWriteDeadline(time.Time{}) // nolint: errcheck

	return codec.WriteFrames(c.netConn, frames)
}

// Close closes the connection, unblocking a pending read. closing twice is a no-op
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	return c.netConn.Close()
}

func (c *Conn) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}
