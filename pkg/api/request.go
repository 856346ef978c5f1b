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
	"github.com/samber/lo"
)

type RequestMeta struct {
	ID       string   `msgpack:"i"`
	Version  string   `msgpack:"v"`
	Datetime string   `msgpack:"d"`
	Protocol string   `msgpack:"p"`
	Gateway  []string `msgpack:"g"`
	Client   string   `msgpack:"c"`
}

// Request is the argument of a middleware request command. the middleware decides which
// service the gateway calls, or answers the client directly with NewResponse
type Request struct {
	Api `msgpack:"-"`

	Meta        *RequestMeta `msgpack:"m"`
	HTTPRequest *HttpRequest `msgpack:"r"`
	Call        *ServiceCall `msgpack:"c"`

	response *HttpResponse
}

func (r *Request) GetID() string {
	return r.meta().ID
}

func (r *Request) GetGatewayProtocol() string {
	return r.meta().Protocol
}

// GetGatewayAddress returns the public address of the gateway that received the request
func (r *Request) GetGatewayAddress() string {
	if gateway := r.meta().Gateway; len(gateway) > 1 {
		return gateway[1]
	}

	return ""
}

func (r *Request) GetClientAddress() string {
	return r.meta().Client
}

func (r *Request) GetServiceName() string {
	return r.call().Service
}

func (r *Request) SetServiceName(service string) {
	r.call().Service = service
}

func (r *Request) GetServiceVersion() string {
	return r.call().Version
}

func (r *Request) SetServiceVersion(version string) {
	r.call().Version = version
}

func (r *Request) GetActionName() string {
	return r.call().Action
}

func (r *Request) SetActionName(action string) {
	r.call().Action = action
}

func (r *Request) HasParam(name string) bool {
	_, found := r.findParam(name)
	return found
}

func (r *Request) GetParam(name string) *Param {
	if param, found := r.findParam(name); found {
		return param
	}

	return &Param{Name: name, Type: TypeString, Value: ""}
}

func (r *Request) GetParams() []*Param {
	return r.call().Params
}

// SetParam adds a parameter to the service call, replacing one with the same name
func (r *Request) SetParam(param *Param) {
	call := r.call()
	call.Params = append(lo.Reject(call.Params, func(existing *Param, _ int) bool {
		return existing != nil && existing.Name == param.Name
	}), param)
}

func (r *Request) GetHttpRequest() *HttpRequest {
	if r.HTTPRequest == nil {
		r.HTTPRequest = &HttpRequest{}
	}

	return r.HTTPRequest
}

// NewResponse makes the gateway answer the client with an HTTP response instead of calling a service
func (r *Request) NewResponse(code int, text string) *HttpResponse {
	r.response = NewHttpResponse(r.GetHttpRequest().Version, code, text)
	return r.response
}

func (r *Request) HasResponse() bool {
	return r.response != nil
}

func (r *Request) GetResponse() *HttpResponse {
	return r.response
}

func (r *Request) meta() *RequestMeta {
	if r.Meta == nil {
		r.Meta = &RequestMeta{}
	}

	return r.Meta
}

func (r *Request) call() *ServiceCall {
	if r.Call == nil {
		r.Call = &ServiceCall{}
	}

	return r.Call
}

func (r *Request) findParam(name string) (*Param, bool) {
	return lo.Find(r.call().Params, func(param *Param) bool {
		return param != nil && param.Name == name
	})
}
