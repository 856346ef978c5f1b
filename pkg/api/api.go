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
	"github.com/kusanagi/katana-sdk-go/pkg/schema"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/samber/lo"
)

// ErrResourceNotFound is returned by GetResource for names that were never registered
var ErrResourceNotFound = errors.New("Resource not found")

// Component is what a handler sees of the component that runs it
type Component interface {
	HasResource(name string) bool
	GetResource(name string) (interface{}, error)
}

// Context holds the attributes every handler needs but that do not travel in the command
type Context struct {
	Component        Component
	Logger           logger.Logger
	ComponentType    string
	Name             string
	Version          string
	FrameworkVersion string
	Variables        map[string]string
	Debug            bool
	Mapping          *schema.Mapping
}

// Argument is implemented by every typed command argument handed to a handler
type Argument interface {
	Attach(context Context)
}

// Handler is user logic for one component type. returning a nil argument keeps the one passed in
type Handler[T Argument] func(T) (T, error)

type ActionHandler = Handler[*Action]
type RequestHandler = Handler[*Request]
type ResponseHandler = Handler[*Response]

// ServiceVersion names a version of a service found in the mapping
type ServiceVersion struct {
	Service string
	Version string
}

// Api is embedded by every argument type and gives access to the context it was attached to
type Api struct {
	context Context
}

func (a *Api) Attach(context Context) {
	a.context = context
}

func (a *Api) IsDebug() bool {
	return a.context.Debug
}

func (a *Api) GetFrameworkVersion() string {
	return a.context.FrameworkVersion
}

// GetName returns the name of the component
func (a *Api) GetName() string {
	return a.context.Name
}

// GetVersion returns the version of the component
func (a *Api) GetVersion() string {
	return a.context.Version
}

// GetVariables returns a copy of the variables the component was started with
func (a *Api) GetVariables() map[string]string {
	return lo.Assign(a.context.Variables)
}

func (a *Api) GetVariable(name string) (string, bool) {
	value, found := a.context.Variables[name]
	return value, found
}

func (a *Api) HasResource(name string) bool {
	if a.context.Component == nil {
		return false
	}

	return a.context.Component.HasResource(name)
}

func (a *Api) GetResource(name string) (interface{}, error) {
	if a.context.Component == nil {
		return nil, errors.Wrapf(ErrResourceNotFound, "Resource not found: %s", name)
	}

	return a.context.Component.GetResource(name)
}

// GetServices lists every service version described by the request mapping
func (a *Api) GetServices() []ServiceVersion {
	var services []ServiceVersion

	for _, service := range a.context.Mapping.GetServices() {
		for _, version := range a.context.Mapping.GetVersions(service) {
			services = append(services, ServiceVersion{Service: service, Version: version})
		}
	}

	return services
}

// GetServiceSchema returns the schema of a service version, failing if the mapping lacks it
func (a *Api) GetServiceSchema(service string, version string) (*schema.ServiceSchema, error) {
	return a.context.Mapping.GetServiceSchema(service, version)
}

// GetMapping returns the schemas that came with the request. it may be empty
func (a *Api) GetMapping() *schema.Mapping {
	return a.context.Mapping
}

// Log emits value at debug level and returns whether the component runs in debug mode
func (a *Api) Log(value interface{}) bool {
	if a.context.Logger != nil {
		a.context.Logger.DebugWith("Log", "value", value)
	}

	return a.context.Debug
}
