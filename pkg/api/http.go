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
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// HttpRequest is the HTTP request the gateway received
type HttpRequest struct {
	Version  string              `msgpack:"v"`
	Method   string              `msgpack:"m"`
	URL      string              `msgpack:"u"`
	Query    map[string][]string `msgpack:"q,omitempty"`
	PostData map[string][]string `msgpack:"p,omitempty"`
	Headers  map[string][]string `msgpack:"h,omitempty"`
	Body     []byte              `msgpack:"b,omitempty"`
	Files    []*File             `msgpack:"f,omitempty"`
}

func (hr *HttpRequest) IsMethod(method string) bool {
	return strings.EqualFold(hr.Method, method)
}

func (hr *HttpRequest) GetMethod() string {
	return strings.ToUpper(hr.Method)
}

// GetURLPath returns the path part of the request URL, or an empty string if it cannot be parsed
func (hr *HttpRequest) GetURLPath() string {
	parsedURL, err := url.Parse(hr.URL)
	if err != nil {
		return ""
	}

	return parsedURL.Path
}

func (hr *HttpRequest) HasQueryParam(name string) bool {
	_, found := hr.Query[name]
	return found
}

// GetQueryParam returns the first value of a query parameter
func (hr *HttpRequest) GetQueryParam(name string, defaultValue string) string {
	values := hr.Query[name]
	if len(values) == 0 {
		return defaultValue
	}

	return values[0]
}

func (hr *HttpRequest) HasPostParam(name string) bool {
	_, found := hr.PostData[name]
	return found
}

func (hr *HttpRequest) GetPostParam(name string, defaultValue string) string {
	values := hr.PostData[name]
	if len(values) == 0 {
		return defaultValue
	}

	return values[0]
}

func (hr *HttpRequest) HasHeader(name string) bool {
	return len(hr.Headers[name]) > 0 || len(http.Header(hr.Headers).Values(name)) > 0
}

func (hr *HttpRequest) GetHeader(name string, defaultValue string) string {
	if values := hr.Headers[name]; len(values) > 0 {
		return values[0]
	}

	if value := http.Header(hr.Headers).Get(name); value != "" {
		return value
	}

	return defaultValue
}

func (hr *HttpRequest) HasBody() bool {
	return len(hr.Body) > 0
}

// HttpResponse is the HTTP response the gateway sends back to its client
type HttpResponse struct {
	Version string              `msgpack:"v"`
	Status  string              `msgpack:"s"`
	Headers map[string][]string `msgpack:"h"`
	Body    []byte              `msgpack:"b"`
}

func NewHttpResponse(version string, code int, text string) *HttpResponse {
	httpResponse := HttpResponse{
		Version: version,
		Headers: map[string][]string{},
	}

	httpResponse.SetStatus(code, text)
	return &httpResponse
}

// SetStatus sets the status line. an empty text falls back to the standard one for code
func (hr *HttpResponse) SetStatus(code int, text string) {
	if text == "" {
		text = http.StatusText(code)
	}

	hr.Status = fmt.Sprintf("%d %s", code, text)
}

func (hr *HttpResponse) IsStatus(status string) bool {
	return hr.Status == status
}

// GetStatusCode returns the numeric part of the status, or 0 if the status is malformed
func (hr *HttpResponse) GetStatusCode() int {
	codeString, _, _ := strings.Cut(hr.Status, " ")

	code, err := strconv.Atoi(codeString)
	if err != nil {
		return 0
	}

	return code
}

func (hr *HttpResponse) GetStatusText() string {
	_, text, _ := strings.Cut(hr.Status, " ")
	return text
}

func (hr *HttpResponse) SetHeader(name string, value string) {
	if hr.Headers == nil {
		hr.Headers = map[string][]string{}
	}

	hr.Headers[name] = append(hr.Headers[name], value)
}

func (hr *HttpResponse) GetHeader(name string, defaultValue string) string {
	if values := hr.Headers[name]; len(values) > 0 {
		return values[0]
	}

	return defaultValue
}

func (hr *HttpResponse) SetBody(body []byte) {
	hr.Body = body
}

func (hr *HttpResponse) HasBody() bool {
	return len(hr.Body) > 0
}

// File is a file parameter, either uploaded through the gateway or produced by a service
type File struct {
	Name     string `msgpack:"n"`
	Path     string `msgpack:"p"`
	Mime     string `msgpack:"m"`
	Filename string `msgpack:"f"`
	Size     int64  `msgpack:"s"`
	Token    string `msgpack:"t,omitempty"`
}

// IsLocal returns true for files that live on the local filesystem
func (f *File) IsLocal() bool {
	return strings.HasPrefix(f.Path, "file://")
}
