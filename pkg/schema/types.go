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

// ErrUndefined is returned when a schema lookup names something the mapping does not describe
var ErrUndefined = errors.New("Undefined schema")

// ServiceSchema describes one version of a service. Name and Version are not part of the
// encoded value, they are the keys the schema was found under
type ServiceSchema struct {
	Name    string                   `msgpack:"-"`
	Version string                   `msgpack:"-"`
	Address string                   `msgpack:"a"`
	Files   bool                     `msgpack:"f"`
	Actions map[string]*ActionSchema `msgpack:"ac"`
	HTTP    *HTTPServiceSchema       `msgpack:"h"`
}

type HTTPServiceSchema struct {
	Gateway  bool   `msgpack:"g"`
	BasePath string `msgpack:"b"`
}

// GetActions returns the names of the actions the service exposes, sorted
func (ss *ServiceSchema) GetActions() []string {
	return common.SortedKeys(ss.Actions)
}

func (ss *ServiceSchema) HasAction(name string) bool {
	_, found := ss.Actions[name]
	return found
}

func (ss *ServiceSchema) GetActionSchema(name string) (*ActionSchema, error) {
	actionSchema, found := ss.Actions[name]
	if !found {
		return nil, errors.Wrapf(ErrUndefined,
			"Cannot resolve schema for action: %s (%s) %s", ss.Name, ss.Version, name)
	}

	return actionSchema, nil
}

type ActionSchema struct {
	Name          string                  `msgpack:"-"`
	Timeout       int                     `msgpack:"x"`
	EntityPath    string                  `msgpack:"e"`
	PathDelimiter string                  `msgpack:"d"`
	Collection    bool                    `msgpack:"c"`
	Deprecated    bool                    `msgpack:"D"`
	Params        map[string]*ParamSchema `msgpack:"p"`
	Files         map[string]*FileSchema  `msgpack:"f"`
	Entity        *EntitySchema           `msgpack:"E"`
	Relations     [][]string              `msgpack:"r"`
	Calls         [][]string              `msgpack:"C"`
	Return        *ReturnSchema           `msgpack:"rv"`
	HTTP          *HTTPActionSchema       `msgpack:"h"`
	Tags          []string                `msgpack:"t"`
}

// GetParams returns the names of the action parameters, sorted
func (as *ActionSchema) GetParams() []string {
	return common.SortedKeys(as.Params)
}

func (as *ActionSchema) HasParam(name string) bool {
	_, found := as.Params[name]
	return found
}

func (as *ActionSchema) GetParamSchema(name string) (*ParamSchema, error) {
	paramSchema, found := as.Params[name]
	if !found {
		return nil, errors.Wrapf(ErrUndefined, "Cannot resolve schema for parameter: %s", name)
	}

	return paramSchema, nil
}

// GetFiles returns the names of the action file parameters, sorted
func (as *ActionSchema) GetFiles() []string {
	return common.SortedKeys(as.Files)
}

func (as *ActionSchema) GetFileSchema(name string) (*FileSchema, error) {
	fileSchema, found := as.Files[name]
	if !found {
		return nil, errors.Wrapf(ErrUndefined, "Cannot resolve schema for file parameter: %s", name)
	}

	return fileSchema, nil
}

type HTTPActionSchema struct {
	Gateway bool   `msgpack:"g"`
	Path    string `msgpack:"p"`
	Method  string `msgpack:"m"`
	Input   string `msgpack:"i"`
	Body    string `msgpack:"b"`
}

type ParamSchema struct {
	Name         string        `msgpack:"-"`
	Type         string        `msgpack:"t"`
	Format       string        `msgpack:"f"`
	ArrayFormat  string        `msgpack:"af"`
	Pattern      string        `msgpack:"p"`
	AllowEmpty   bool          `msgpack:"e"`
	Default      interface{}   `msgpack:"d"`
	Required     bool          `msgpack:"r"`
	Items        interface{}   `msgpack:"i"`
	Max          interface{}   `msgpack:"mx"`
	ExclusiveMax bool          `msgpack:"ex"`
	Min          interface{}   `msgpack:"mn"`
	ExclusiveMin bool          `msgpack:"en"`
	MaxLength    int           `msgpack:"xl"`
	MinLength    int           `msgpack:"nl"`
	MaxItems     int           `msgpack:"xi"`
	MinItems     int           `msgpack:"ni"`
	UniqueItems  bool          `msgpack:"ui"`
	Enum         []interface{} `msgpack:"em"`
	MultipleOf   int           `msgpack:"mo"`
	HTTP         *HTTPParam    `msgpack:"h"`
}

type HTTPParam struct {
	Gateway bool   `msgpack:"g"`
	Input   string `msgpack:"i"`
	Param   string `msgpack:"p"`
}

type FileSchema struct {
	Name         string     `msgpack:"-"`
	Mime         string     `msgpack:"m"`
	Required     bool       `msgpack:"r"`
	Max          int64      `msgpack:"mx"`
	ExclusiveMax bool       `msgpack:"ex"`
	Min          int64      `msgpack:"mn"`
	ExclusiveMin bool       `msgpack:"en"`
	HTTP         *HTTPParam `msgpack:"h"`
}

// EntitySchema describes the entity an action returns as a tree of fields
type EntitySchema struct {
	Field      []*FieldSchema       `msgpack:"f"`
	Fields     []*ObjectFieldSchema `msgpack:"F"`
	Validate   bool                 `msgpack:"V"`
	PrimaryKey string               `msgpack:"k"`
}

type FieldSchema struct {
	Name     string `msgpack:"n"`
	Type     string `msgpack:"t"`
	Optional bool   `msgpack:"o"`
}

// ObjectFieldSchema is a composite field. Fields nests further object fields, forming a tree
type ObjectFieldSchema struct {
	Name     string               `msgpack:"n"`
	Optional bool                 `msgpack:"o"`
	Field    []*FieldSchema       `msgpack:"f"`
	Fields   []*ObjectFieldSchema `msgpack:"F"`
}

type ReturnSchema struct {
	Type       string `msgpack:"t"`
	AllowEmpty bool   `msgpack:"e"`
}
