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

package api

import (
	"github.com/kusanagi/katana-sdk-go/pkg/codec"
)

// Transport accumulates what the services of a request produced. sections are keyed by
// gateway address, then service, then version
type Transport struct {
	Meta         *TransportMeta                                 `msgpack:"m"`
	Body         *File                                          `msgpack:"b,omitempty"`
	Files        map[string]map[string]map[string][]*File       `msgpack:"f,omitempty"`
	Data         map[string]map[string]map[string]ActionData    `msgpack:"d,omitempty"`
	Relations    map[string]interface{}                         `msgpack:"r,omitempty"`
	Links        map[string]map[string]map[string]string        `msgpack:"l,omitempty"`
	Calls        map[string]map[string][]*ServiceCall           `msgpack:"c,omitempty"`
	Transactions map[string][]*Transaction                      `msgpack:"t,omitempty"`
	Errors       map[string]map[string]map[string][]ErrorDetail `msgpack:"e,omitempty"`
}

// ActionData maps an action name to the entities and collections it returned
type ActionData map[string][]interface{}

type TransportMeta struct {
	Version    string            `msgpack:"v"`
	ID         string            `msgpack:"i"`
	Datetime   string            `msgpack:"d"`
	Gateway    []string          `msgpack:"g"`
	Origin     []string          `msgpack:"o"`
	Level      int               `msgpack:"l"`
	Properties map[string]string `msgpack:"p,omitempty"`
}

// ServiceCall names an action of a service to be called, along with its parameters
type ServiceCall struct {
	Service string   `msgpack:"s"`
	Version string   `msgpack:"v"`
	Action  string   `msgpack:"a"`
	Caller  string   `msgpack:"C,omitempty"`
	Timeout int      `msgpack:"x,omitempty"`
	Params  []*Param `msgpack:"p,omitempty"`
}

// transaction kinds
const (
	TransactionCommit   = "c"
	TransactionRollback = "r"
	TransactionComplete = "C"
)

type Transaction struct {
	Name    string   `msgpack:"n"`
	Version string   `msgpack:"v"`
	Action  string   `msgpack:"a"`
	Caller  string   `msgpack:"C"`
	Params  []*Param `msgpack:"p,omitempty"`
}

// GetPublicGatewayAddress returns the address clients use to reach the gateway
func (t *Transport) GetPublicGatewayAddress() string {
	if t.Meta == nil || len(t.Meta.Gateway) < 2 {
		return ""
	}

	return t.Meta.Gateway[1]
}

// GetMetadata returns the reply metadata flags describing what the transport carries
func (t *Transport) GetMetadata() byte {
	var metadata byte

	if len(t.Calls) > 0 {
		metadata |= codec.MetadataServiceCalls
	}

	if len(t.Files) > 0 {
		metadata |= codec.MetadataFiles
	}

	if len(t.Transactions) > 0 {
		metadata |= codec.MetadataTransactions
	}

	if t.Body != nil {
		metadata |= codec.MetadataDownload
	}

	return metadata
}
