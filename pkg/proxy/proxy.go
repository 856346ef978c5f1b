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
	"net"
	"sync"
	"sync/atomic"

	"github.com/kusanagi/katana-sdk-go/pkg/api"
	"github.com/kusanagi/katana-sdk-go/pkg/codec"
	"github.com/kusanagi/katana-sdk-go/pkg/transport"
	"github.com/kusanagi/katana-sdk-go/pkg/worker"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
)

// Proxy relays request frame sets from frontend connections to ready workers on the backend,
// and routes replies back to the connection the request came from. nothing on the relay path
// writes to a frontend socket: replies go through each client's outbound queue
type Proxy struct {

	// accessed atomically, keep as first field for alignment
	statistics Statistics

	logger           logger.Logger
	configuration    *Configuration
	codec            codec.Codec
	frontendListener net.Listener
	backendListener  net.Listener
	frontendConns    *xsync.MapOf[*transport.Conn, struct{}]
	backendConns     *xsync.MapOf[*transport.Conn, struct{}]
	pendingReplies   *xsync.MapOf[uint64, *client]
	nextRoutingID    uint64
	requests         chan *request
	ready            chan *transport.Conn
	lost             chan *transport.Conn
	stopCh           chan struct{}
	stopOnce         sync.Once
	running          int32
}

// relayState is owned by the relay loop and never shared
type relayState struct {
	pendingRequests []*request
	readyWorkers    []*transport.Conn

	// routing id of the request each worker is serving
	busyWorkers map[*transport.Conn]uint64
}

func NewProxy(parentLogger logger.Logger,
	codecInstance codec.Codec,
	configuration *Configuration) (*Proxy, error) {

	if configuration.Frontend == nil || configuration.Backend == nil {
		return nil, errors.New("Proxy requires a frontend and a backend endpoint")
	}

	if configuration.QueueSize < 0 {
		return nil, errors.Errorf("Invalid queue size: %d", configuration.QueueSize)
	}

	if configuration.ClientQueueSize <= 0 {
		configuration.ClientQueueSize = DefaultClientQueueSize
	}

	if configuration.WriteTimeout <= 0 {
		configuration.WriteTimeout = DefaultWriteTimeout
	}

	return &Proxy{
		logger:         parentLogger.GetChild("proxy"),
		configuration:  configuration,
		codec:          codecInstance,
		frontendConns:  xsync.NewMapOf[*transport.Conn, struct{}](),
		backendConns:   xsync.NewMapOf[*transport.Conn, struct{}](),
		pendingReplies: xsync.NewMapOf[uint64, *client](),
		requests:       make(chan *request),
		ready:          make(chan *transport.Conn),
		lost:           make(chan *transport.Conn),
		stopCh:         make(chan struct{}),
	}, nil
}

// Bind listens on the backend and frontend endpoints
func (p *Proxy) Bind() error {
	var err error

	p.backendListener, err = transport.Listen(p.logger, p.configuration.Backend)
	if err != nil {
		return errors.Wrap(err, "Failed to bind backend")
	}

	p.frontendListener, err = transport.Listen(p.logger, p.configuration.Frontend)
	if err != nil {
		p.backendListener.Close() // nolint: errcheck
		return errors.Wrap(err, "Failed to bind frontend")
	}

	p.logger.DebugWith("Proxy bound",
		"frontend", p.configuration.Frontend.String(),
		"backend", p.configuration.Backend.String())

	return nil
}

// Run relays requests on the calling goroutine until Stop is called
func (p *Proxy) Run() error {
	if p.frontendListener == nil || p.backendListener == nil {
		return errors.New("Proxy must be bound before running")
	}

	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return errors.New("Proxy is already running")
	}

	go p.acceptConnections(p.backendListener, p.backendConns, p.serveBackendConnection)
	go p.acceptConnections(p.frontendListener, p.frontendConns, p.serveFrontendConnection)

	state := &relayState{
		busyWorkers: map[*transport.Conn]uint64{},
	}

	for {
		select {
		case <-p.stopCh:
			p.logger.DebugWith("Proxy relay loop exiting", "pendingRequests", len(state.pendingRequests))
			return nil

		case receivedRequest := <-p.requests:
			atomic.AddUint64(&p.statistics.RequestsReceived, 1)
			p.handleRequest(state, receivedRequest)

		case workerConn := <-p.ready:
			p.handleReadyWorker(state, workerConn)

		case workerConn := <-p.lost:
			p.handleLostWorker(state, workerConn)
		}
	}
}

// Stop closes the listeners and every connection. safe to call more than once
func (p *Proxy) Stop() error {
	p.stopOnce.Do(func() {
		p.logger.DebugWith("Stopping proxy")

		close(p.stopCh)

		// backend first, so that no reply is relayed to a closing frontend
		p.closeListenerAndConns(p.backendListener, p.backendConns)
		p.closeListenerAndConns(p.frontendListener, p.frontendConns)
	})

	return nil
}

// GetStatistics returns a pointer to the statistics object. This must not be modified by the reader
func (p *Proxy) GetStatistics() *Statistics {
	return &p.statistics
}

// GetFrontendAddress returns the address the frontend listener is bound to
func (p *Proxy) GetFrontendAddress() net.Addr {
	if p.frontendListener == nil {
		return nil
	}

	return p.frontendListener.Addr()
}

func (p *Proxy) handleRequest(state *relayState, receivedRequest *request) {
	if p.dispatchToReadyWorker(state, receivedRequest) {
		return
	}

	if p.configuration.QueueSize > 0 && len(state.pendingRequests) >= p.configuration.QueueSize {
		p.reject(receivedRequest)
		return
	}

	state.pendingRequests = append(state.pendingRequests, receivedRequest)
	atomic.AddInt64(&p.statistics.RequestsQueued, 1)
}

func (p *Proxy) handleReadyWorker(state *relayState, workerConn *transport.Conn) {

	// the reply of the request it served was relayed before the worker reported ready
	delete(state.busyWorkers, workerConn)

	if len(state.pendingRequests) == 0 {
		state.readyWorkers = append(state.readyWorkers, workerConn)
		return
	}

	pendingRequest := state.pendingRequests[0]

	if !p.dispatch(workerConn, pendingRequest) {
		return
	}

	state.pendingRequests[0] = nil
	state.pendingRequests = state.pendingRequests[1:]
	atomic.AddInt64(&p.statistics.RequestsQueued, -1)

	state.busyWorkers[workerConn] = pendingRequest.routingID
}

// handleLostWorker forgets a worker whose connection is gone and fails the request it was serving
func (p *Proxy) handleLostWorker(state *relayState, workerConn *transport.Conn) {
	atomic.AddUint64(&p.statistics.WorkersLost, 1)

	state.readyWorkers = lo.Without(state.readyWorkers, workerConn)

	routingID, busy := state.busyWorkers[workerConn]
	if !busy {
		p.logger.WarnWith("Lost an idle worker", "numReadyWorkers", len(state.readyWorkers))
		return
	}

	delete(state.busyWorkers, workerConn)

	p.logger.WarnWith("Lost a worker while it served a request", "routingID", routingID)

	if pendingClient, found := p.pendingReplies.LoadAndDelete(routingID); found {
		p.replyFailure(pendingClient, ErrWorkerUnavailable.Error())
	}
}

func (p *Proxy) dispatchToReadyWorker(state *relayState, dispatchedRequest *request) bool {
	for len(state.readyWorkers) > 0 {
		workerConn := state.readyWorkers[0]
		state.readyWorkers = state.readyWorkers[1:]

		if p.dispatch(workerConn, dispatchedRequest) {
			state.busyWorkers[workerConn] = dispatchedRequest.routingID
			return true
		}
	}

	return false
}

// dispatch hands a request to a worker. a worker that can't be written to is closed, its reader
// goroutine then reports it lost
func (p *Proxy) dispatch(workerConn *transport.Conn, dispatchedRequest *request) bool {
	frames := make([][]byte, 0, len(dispatchedRequest.frames)+1)
	frames = append(frames, worker.EncodeRoutingID(dispatchedRequest.routingID))
	frames = append(frames, dispatchedRequest.frames...)

	if err := workerConn.WriteFrames(frames); err != nil {
		p.logger.WarnWith("Failed to dispatch request to worker", "err", err.Error())
		workerConn.Close() // nolint: errcheck

		return false
	}

	atomic.AddUint64(&p.statistics.RequestsDispatched, 1)

	return true
}

func (p *Proxy) acceptConnections(listener net.Listener,
	conns *xsync.MapOf[*transport.Conn, struct{}],
	serve func(*transport.Conn)) {

	for {
		netConn, err := listener.Accept()
		if err != nil {
			if !p.isStopping() {
				p.logger.WarnWith("Failed to accept connection", "err", err.Error())
			}

			return
		}

		conn := transport.NewConn(netConn)
		conns.Store(conn, struct{}{})

		// stop raced with accept, the connection was not seen by Stop
		if p.isStopping() {
			conns.Delete(conn)
			conn.Close() // nolint: errcheck
			return
		}

		go func() {
			defer func() {
				conns.Delete(conn)
				conn.Close() // nolint: errcheck
			}()

			serve(conn)
		}()
	}
}

func (p *Proxy) serveFrontendConnection(conn *transport.Conn) {
	frontendClient := newClient(p.logger,
		conn,
		p.configuration.ClientQueueSize,
		p.configuration.WriteTimeout,
		&p.statistics)

	go frontendClient.writeReplies()
	defer frontendClient.close()

	for {
		frames, err := conn.ReadFrames()
		if err != nil {
			p.logConnectionError("frontend", err)
			return
		}

		// the routing id takes one frame
		if len(frames) >= codec.MaxFrameCount {
			p.logger.WarnWith("Rejecting request with too many frames", "numFrames", len(frames))
			p.replyFailure(frontendClient, "too many frames")
			continue
		}

		receivedRequest := &request{
			routingID: atomic.AddUint64(&p.nextRoutingID, 1),
			client:    frontendClient,
			frames:    frames,
		}

		p.pendingReplies.Store(receivedRequest.routingID, frontendClient)

		select {
		case p.requests <- receivedRequest:
		case <-p.stopCh:
			return
		}
	}
}

func (p *Proxy) serveBackendConnection(workerConn *transport.Conn) {
	defer func() {
		select {
		case p.lost <- workerConn:
		case <-p.stopCh:
		}
	}()

	for {
		frames, err := workerConn.ReadFrames()
		if err != nil {
			p.logConnectionError("backend", err)
			return
		}

		if !worker.IsReady(frames) {
			p.relayReply(frames)
		}

		select {
		case p.ready <- workerConn:
		case <-p.stopCh:
			return
		}
	}
}

func (p *Proxy) relayReply(frames [][]byte) {
	routingID, err := worker.DecodeRoutingID(frames)
	if err != nil {
		p.logger.WarnWith("Dropping reply without routing id", "numFrames", len(frames))
		return
	}

	pendingClient, found := p.pendingReplies.LoadAndDelete(routingID)
	if !found {
		p.logger.WarnWith("Dropping reply for unknown request", "routingID", routingID)
		return
	}

	if !pendingClient.send(frames[1:]) {
		p.logger.DebugWith("Dropping reply, client is gone", "routingID", routingID)
	}
}

func (p *Proxy) reject(rejectedRequest *request) {
	atomic.AddUint64(&p.statistics.RequestsRejected, 1)

	p.logger.WarnWith("Backend queue is full, rejecting request", "queueSize", p.configuration.QueueSize)
	p.pendingReplies.Delete(rejectedRequest.routingID)
	p.replyFailure(rejectedRequest.client, ErrQueueFull.Error())
}

func (p *Proxy) replyFailure(failedClient *client, message string) {
	frames := codec.FailureReplyFrames()

	payload, err := p.codec.Encode(api.NewErrorPayload(message))
	if err == nil {
		frames = codec.ReplyFrames(codec.MetadataFailure, payload)
	}

	failedClient.send(frames)
}

func (p *Proxy) closeListenerAndConns(listener net.Listener, conns *xsync.MapOf[*transport.Conn, struct{}]) {
	if listener != nil {
		if err := listener.Close(); err != nil {
			p.logger.DebugWith("Failed to close listener", "err", err.Error())
		}
	}

	conns.Range(func(conn *transport.Conn, _ struct{}) bool {
		conn.Close() // nolint: errcheck
		return true
	})
}

func (p *Proxy) logConnectionError(side string, err error) {
	if p.isStopping() {
		return
	}

	p.logger.DebugWith("Connection closed", "side", side, "err", err.Error())
}

func (p *Proxy) isStopping() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}
