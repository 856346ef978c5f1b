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
	"github.com/nuclio/errors"
)

type ResponseMeta struct {
	ID       string   `msgpack:"i"`
	Version  string   `msgpack:"v"`
	Protocol string   `msgpack:"p"`
	Gateway  []string `msgpack:"g"`
}

// Response is the argument of a middleware response command, run after the services of
// a request have finished
type Response struct {
	Api `msgpack:"-"`

	Meta         *ResponseMeta `msgpack:"m"`
	HTTPRequest  *HttpRequest  `msgpack:"r"`
	HTTPResponse *HttpResponse `msgpack:"R"`
	Transport    *Transport    `msgpack:"t"`
	Return       interface{}   `msgpack:"rv"`
}

func (r *Response) GetGatewayProtocol() string {
	if r.Meta == nil {
		return ""
	}

	return r.Meta.Protocol
}

func (r *Response) GetGatewayAddress() string {
	if r.Meta == nil || len(r.Meta.Gateway) < 2 {
		return ""
	}

	return r.Meta.Gateway[1]
}

func (r *Response) GetHttpRequest() *HttpRequest {
	if r.HTTPRequest == nil {
		r.HTTPRequest = &HttpRequest{}
	}

	return r.HTTPRequest
}

func (r *Response) GetHttpResponse() *HttpResponse {
	if r.HTTPResponse == nil {
		r.HTTPResponse = NewHttpResponse(r.GetHttpRequest().Version, 200, "")
	}

	return r.HTTPResponse
}

// HasReturn returns true when the service first called in the request returned a value
func (r *Response) HasReturn() bool {
	return r.Return != nil
}

func (r *Response) GetReturn() (interface{}, error) {
	if r.Return == nil {
		return nil, errors.Errorf("No return value defined on %s (%s)", r.GetName(), r.GetVersion())
	}

	return r.Return, nil
}

func (r *Response) GetTransport() *Transport {
	if r.Transport == nil {
		r.Transport = &Transport{}
	}

	return r.Transport
}
