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
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/nuclio/errors"
	"github.com/rs/xid"
)

// ErrTransport is the root cause of failures to bind or connect sockets
var ErrTransport = errors.New("Transport failure")

// endpoint schemes
const (
	SchemeIPC = "ipc"
	SchemeTCP = "tcp"
)

const workerSocketNameTemplate = "katana-workers-%s.sock"

// Endpoint is a socket address of the form ipc://<path> or tcp://<host>:<port>. ipc paths
// starting with @ live in the abstract namespace
type Endpoint struct {
	Scheme  string
	Address string
}

func ParseEndpoint(endpoint string) (*Endpoint, error) {
	scheme, address, found := strings.Cut(endpoint, "://")
	if !found || address == "" {
		return nil, errors.Wrapf(ErrTransport, "Invalid endpoint: %s", endpoint)
	}

	switch scheme {
	case SchemeIPC:
	case SchemeTCP:
		if _, _, err := net.SplitHostPort(address); err != nil {
			return nil, errors.Wrapf(ErrTransport, "Invalid tcp address %s: %s", address, err.Error())
		}
	default:
		return nil, errors.Wrapf(ErrTransport, "Unsupported endpoint scheme: %s", scheme)
	}

	return &Endpoint{
		Scheme:  scheme,
		Address: address,
	}, nil
}

// NewIPCEndpoint creates an endpoint for a local socket path
func NewIPCEndpoint(path string) *Endpoint {
	return &Endpoint{
		Scheme:  SchemeIPC,
		Address: path,
	}
}

// NewTCPEndpoint creates an endpoint for host:port
func NewTCPEndpoint(host string, port string) *Endpoint {
	return &Endpoint{
		Scheme:  SchemeTCP,
		Address: net.JoinHostPort(host, port),
	}
}

// NewWorkerEndpoint creates a process unique local endpoint, never reused across starts
func NewWorkerEndpoint() *Endpoint {
	return NewIPCEndpoint(filepath.Join(os.TempDir(), fmt.Sprintf(workerSocketNameTemplate, xid.New().String())))
}

// Network returns the name of the endpoint network as understood by the net package
func (e *Endpoint) Network() string {
	if e.Scheme == SchemeTCP {
		return "tcp"
	}

	return "unix"
}

// IsAbstract returns true for local sockets that have no filesystem presence
func (e *Endpoint) IsAbstract() bool {
	return e.Scheme == SchemeIPC && strings.HasPrefix(e.Address, "@")
}

func (e *Endpoint) String() string {
	return e.Scheme + "://" + e.Address
}
