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

package app

import (
	"net/http"
	"strings"

	"github.com/kusanagi/katana-sdk-go/pkg/api"
	"github.com/kusanagi/katana-sdk-go/pkg/component"

	"github.com/nuclio/errors"
)

const (
	usersServiceName    = "users"
	usersServiceVersion = "1.0.0"
	usersPathPrefix     = "/users"
	sampleHeaderName    = "X-Katana-Sample"
)

// NewGatewayMiddleware creates the sample middleware, routing REST calls on /users to the users service
func NewGatewayMiddleware(args []string) (*component.Middleware, error) {
	middleware, err := component.NewMiddleware(args)
	if err != nil {
		return nil, err
	}

	if err := registerGatewayMiddleware(middleware); err != nil {
		return nil, err
	}

	return middleware, nil
}

func registerGatewayMiddleware(middleware *component.Middleware) error {
	if err := middleware.Request(routeRequest); err != nil {
		return errors.Wrap(err, "Failed to register request handler")
	}

	if err := middleware.Response(decorateResponse); err != nil {
		return errors.Wrap(err, "Failed to register response handler")
	}

	return nil
}

// routeRequest maps the HTTP method and path to a users service action
func routeRequest(request *api.Request) (*api.Request, error) {
	httpRequest := request.GetHttpRequest()

	path := strings.TrimSuffix(httpRequest.GetURLPath(), "/")
	if path != usersPathPrefix && !strings.HasPrefix(path, usersPathPrefix+"/") {
		return notFound(request), nil
	}

	id := strings.TrimPrefix(strings.TrimPrefix(path, usersPathPrefix), "/")
	if strings.Contains(id, "/") {
		return notFound(request), nil
	}

	var actionName string

	switch {
	case id == "" && httpRequest.IsMethod(http.MethodGet):
		actionName = "list"
	case id == "" && httpRequest.IsMethod(http.MethodPost):
		actionName = "create"
		request.SetParam(&api.Param{
			Name:  "name",
			Value: httpRequest.GetPostParam("name", ""),
			Type:  api.TypeString,
		})
	case id != "" && httpRequest.IsMethod(http.MethodGet):
		actionName = "read"
	case id != "" && httpRequest.IsMethod(http.MethodDelete):
		actionName = "delete"
	default:
		response := request.NewResponse(http.StatusMethodNotAllowed, "")
		response.SetBody([]byte("method not allowed"))
		return request, nil
	}

	if id != "" {
		request.SetParam(&api.Param{Name: "id", Value: id, Type: api.TypeString})
	}

	request.SetServiceName(usersServiceName)
	request.SetServiceVersion(usersServiceVersion)
	request.SetActionName(actionName)

	return request, nil
}

func decorateResponse(response *api.Response) (*api.Response, error) {
	response.GetHttpResponse().SetHeader(sampleHeaderName, response.GetVersion())

	return response, nil
}

func notFound(request *api.Request) *api.Request {
	response := request.NewResponse(http.StatusNotFound, "")
	response.SetBody([]byte("not found"))

	return request
}
