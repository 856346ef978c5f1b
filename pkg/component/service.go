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
	"github.com/kusanagi/katana-sdk-go/pkg/common"
	"github.com/kusanagi/katana-sdk-go/pkg/config"
	"github.com/kusanagi/katana-sdk-go/pkg/protocol"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// Service is a component that serves actions
type Service struct {
	*Component
}

// NewService creates a service from command line arguments (without the program name)
func NewService(args []string) (*Service, error) {
	configuration, err := parseConfiguration(args, config.ComponentService)
	if err != nil {
		return nil, err
	}

	loggerInstance, err := createLogger(configuration)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create logger")
	}

	return NewServiceFromConfiguration(loggerInstance, configuration)
}

// NewServiceFromConfiguration creates a service from a parsed configuration
func NewServiceFromConfiguration(parentLogger logger.Logger, configuration *config.Configuration) (*Service, error) {
	if configuration.Component != config.ComponentService {
		return nil, errors.Wrapf(config.ErrConfiguration, "Expected a service, got %s", configuration.Component)
	}

	if len(configuration.Unrecognized) > 0 {
		parentLogger.WarnWith("Ignoring unrecognized options", "options", configuration.Unrecognized)
	}

	return &Service{
		Component: newComponent(parentLogger, configuration),
	}, nil
}

// Action registers the handler of an action
func (s *Service) Action(name string, handler api.ActionHandler) error {
	if name == "" {
		return errors.New("Action name must not be empty")
	}

	if handler == nil {
		return errors.Errorf("Handler of action %s must not be nil", name)
	}

	return s.registerHandler(name, protocol.KindAction, handler)
}

// GetActions returns the names of the registered actions, sorted
func (s *Service) GetActions() []string {
	s.handlersLock.RLock()
	defer s.handlersLock.RUnlock()

	return common.SortedKeys(s.handlers)
}
