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

package component

import (
	"github.com/kusanagi/katana-sdk-go/pkg/api"
	"github.com/kusanagi/katana-sdk-go/pkg/config"
	"github.com/kusanagi/katana-sdk-go/pkg/protocol"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// Middleware is a component that sees requests before they reach a service and responses
// before they reach the client
type Middleware struct {
	*Component
}

// NewMiddleware creates a middleware from command line arguments (without the program name)
func NewMiddleware(args []string) (*Middleware, error) {
	configuration, err := parseConfiguration(args, config.ComponentMiddleware)
	if err != nil {
		return nil, err
	}

	loggerInstance, err := createLogger(configuration)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create logger")
	}

	return NewMiddlewareFromConfiguration(loggerInstance, configuration)
}

// NewMiddlewareFromConfiguration creates a middleware from a parsed configuration
func NewMiddlewareFromConfiguration(parentLogger logger.Logger, configuration *config.Configuration) (*Middleware, error) {
	if configuration.Component != config.ComponentMiddleware {
		return nil, errors.Wrapf(config.ErrConfiguration, "Expected a middleware, got %s", configuration.Component)
	}

	if len(configuration.Unrecognized) > 0 {
		parentLogger.WarnWith("Ignoring unrecognized options", "options", configuration.Unrecognized)
	}

	return &Middleware{
		Component: newComponent(parentLogger, configuration),
	}, nil
}

// Request registers the handler called with requests
func (m *Middleware) Request(handler api.RequestHandler) error {
	if handler == nil {
		return errors.New("Request handler must not be nil")
	}

	return m.registerHandler(protocol.KindRequest, protocol.KindRequest, handler)
}

// Response registers the handler called with responses
func (m *Middleware) Response(handler api.ResponseHandler) error {
	if handler == nil {
		return errors.New("Response handler must not be nil")
	}

	return m.registerHandler(protocol.KindResponse, protocol.KindResponse, handler)
}
