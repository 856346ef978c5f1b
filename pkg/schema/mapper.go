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
	"github.com/kusanagi/katana-sdk-go/pkg/codec"
	"github.com/kusanagi/katana-sdk-go/pkg/common"

	"github.com/mitchellh/mapstructure"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// ErrSchemaDecode is the root cause of every failure to turn mapping bytes into schemas
var ErrSchemaDecode = errors.New("Schema decode failed")

// Mapper builds a Mapping out of the raw mapping frame of a request
type Mapper struct {
	logger logger.Logger
	codec  codec.Codec
}

func NewMapper(parentLogger logger.Logger, codecInstance codec.Codec) *Mapper {
	return &Mapper{
		logger: parentLogger.GetChild("mapper"),
		codec:  codecInstance,
	}
}

// Decode builds a mapping from its wire form. no data yields an empty mapping
func (m *Mapper) Decode(data []byte) (*Mapping, error) {
	if len(data) == 0 {
		return NewMapping(), nil
	}

	rawMapping, err := m.codec.DecodeMap(data)
	if err != nil {
		return nil, errors.Wrapf(ErrSchemaDecode, "Failed to decode mapping: %s", err.Error())
	}

	return m.Build(rawMapping)
}

// Build turns a generic service -> version -> schema tree into typed schemas, attaching the
// identity each schema node gets from its position in the tree
func (m *Mapper) Build(rawMapping map[string]interface{}) (*Mapping, error) {
	mapping := NewMapping()

	for _, serviceName := range common.SortedKeys(rawMapping) {
		rawVersions, isMap := rawMapping[serviceName].(map[string]interface{})
		if !isMap {
			return nil, errors.Wrapf(ErrSchemaDecode,
				"Expected a map of versions for service %s, got %T", serviceName, rawMapping[serviceName])
		}

		for _, version := range common.SortedKeys(rawVersions) {
			rawServiceSchema, isMap := rawVersions[version].(map[string]interface{})
			if !isMap {
				return nil, errors.Wrapf(ErrSchemaDecode,
					"Expected a schema map for service %s (%s), got %T", serviceName, version, rawVersions[version])
			}

			serviceSchema, err := decodeServiceSchema(rawServiceSchema)
			if err != nil {
				return nil, errors.Wrapf(ErrSchemaDecode,
					"Failed to decode schema for service %s (%s): %s", serviceName, version, err.Error())
			}

			mapping.Add(AttachIdentity(serviceSchema, serviceName, version))
		}
	}

	m.logger.DebugWith("Mapping built", "services", mapping.GetServices())

	return mapping, nil
}

// AttachIdentity names a service schema and every action, parameter and file schema in it
// after the keys they were found under
func AttachIdentity(serviceSchema *ServiceSchema, service string, version string) *ServiceSchema {
	serviceSchema.Name = service
	serviceSchema.Version = version

	if serviceSchema.Actions == nil {
		serviceSchema.Actions = map[string]*ActionSchema{}
	}

	for actionName, actionSchema := range serviceSchema.Actions {
		if actionSchema == nil {
			actionSchema = &ActionSchema{}
			serviceSchema.Actions[actionName] = actionSchema
		}

		actionSchema.Name = actionName

		for paramName, paramSchema := range actionSchema.Params {
			if paramSchema == nil {
				paramSchema = &ParamSchema{}
				actionSchema.Params[paramName] = paramSchema
			}

			paramSchema.Name = paramName
		}

		for fileName, fileSchema := range actionSchema.Files {
			if fileSchema == nil {
				fileSchema = &FileSchema{}
				actionSchema.Files[fileName] = fileSchema
			}

			fileSchema.Name = fileName
		}
	}

	return serviceSchema
}

func decodeServiceSchema(rawServiceSchema map[string]interface{}) (*ServiceSchema, error) {
	serviceSchema := ServiceSchema{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "msgpack",
		WeaklyTypedInput: true,
		Result:           &serviceSchema,

		// keys differ only by case ("f" and "F"), so never fall back to case insensitive matching
		MatchName: func(mapKey string, fieldName string) bool {
			return mapKey == fieldName
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create schema decoder")
	}

	if err := decoder.Decode(rawServiceSchema); err != nil {
		return nil, err
	}

	return &serviceSchema, nil
}
