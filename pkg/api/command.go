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

// CommandPayload is a decoded command frame
type CommandPayload[T any] struct {
	Meta    CommandMeta `msgpack:"m"`
	Command Command[T]  `msgpack:"c"`
}

type CommandMeta struct {
	Scope string `msgpack:"s"`
}

type Command[T any] struct {
	Name     string `msgpack:"n"`
	Argument T      `msgpack:"a"`
}

// Reply is anything that can be encoded into the payload frame of a reply
type Reply interface {

	// Metadata returns the byte sent in the metadata frame
	Metadata() byte
}

// CommandReply wraps the result a handler produced for a named command
type CommandReply[R any] struct {
	Reply    CommandReplyBody[R] `msgpack:"cr"`
	metadata byte
}

type CommandReplyBody[R any] struct {
	Name   string `msgpack:"n"`
	Result R      `msgpack:"r"`
}

func NewCommandReply[R any](name string, result R, metadata byte) *CommandReply[R] {
	return &CommandReply[R]{
		Reply: CommandReplyBody[R]{
			Name:   name,
			Result: result,
		},
		metadata: metadata,
	}
}

func (cr *CommandReply[R]) Metadata() byte {
	return cr.metadata
}

// CallResult asks the gateway to call a service
type CallResult struct {
	Call *ServiceCall `msgpack:"c"`
}

// ResponseResult asks the gateway to answer the HTTP client
type ResponseResult struct {
	Response *HttpResponse `msgpack:"R"`
}

// ActionResult carries the transport and return value produced by a service action
type ActionResult struct {
	Transport *Transport  `msgpack:"T"`
	Return    interface{} `msgpack:"R,omitempty"`
}

const InternalServerErrorStatus = "500 Internal Server Error"

// ErrorPayload is the reply body sent whenever a request fails. Code is always 1
type ErrorPayload struct {
	Error ErrorDetail `msgpack:"E"`
}

type ErrorDetail struct {
	Message string `msgpack:"m"`
	Code    int    `msgpack:"c"`
	Status  string `msgpack:"s"`
}

func NewErrorPayload(message string) *ErrorPayload {
	return &ErrorPayload{
		Error: ErrorDetail{
			Message: message,
			Code:    1,
			Status:  InternalServerErrorStatus,
		},
	}
}

func (ep *ErrorPayload) Metadata() byte {
	return codec.MetadataFailure
}
