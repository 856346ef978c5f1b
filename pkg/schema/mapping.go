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

package schema

import (
	"github.com/kusanagi/katana-sdk-go/pkg/common"

	"github.com/nuclio/errors"
)

// Mapping is the registry of service schemas that came with a request, keyed by service
// name and version. A nil or empty mapping means no schema is available
type Mapping struct {
	services map[string]map[string]*ServiceSchema
}

func NewMapping() *Mapping {
	return &Mapping{
		services: map[string]map[string]*ServiceSchema{},
	}
}

// Add registers a schema under its name and version
func (m *Mapping) Add(serviceSchema *ServiceSchema) {
	versions, found := m.services[serviceSchema.Name]
	if !found {
		versions = map[string]*ServiceSchema{}
		m.services[serviceSchema.Name] = versions
	}

	versions[serviceSchema.Version] = serviceSchema
}

// Get returns the schema of a service version. a miss is not an error
func (m *Mapping) Get(service string, version string) (*ServiceSchema, bool) {
	if m == nil {
		return nil, false
	}

	serviceSchema, found := m.services[service][version]
	return serviceSchema, found
}

// GetServiceSchema is Get for callers that require the schema to exist
func (m *Mapping) GetServiceSchema(service string, version string) (*ServiceSchema, error) {
	serviceSchema, found := m.Get(service, version)
	if !found {
		return nil, errors.Wrapf(ErrUndefined, "Cannot resolve schema for Service: %s (%s)", service, version)
	}

	return serviceSchema, nil
}

// GetServices returns the names of the services in the mapping, sorted
func (m *Mapping) GetServices() []string {
	if m == nil {
		return []string{}
	}

	return common.SortedKeys(m.services)
}

// GetVersions returns the versions known for a service, sorted
func (m *Mapping) GetVersions(service string) []string {
	if m == nil {
		return []string{}
	}

	return common.SortedKeys(m.services[service])
}

func (m *Mapping) IsEmpty() bool {
	return m == nil || len(m.services) == 0
}
