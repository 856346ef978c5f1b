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
	"github.com/samber/lo"
)

// param types
const (
	TypeNull    = "null"
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeString  = "string"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeBinary  = "binary"
)

type Param struct {
	Name  string      `msgpack:"n"`
	Value interface{} `msgpack:"v"`
	Type  string      `msgpack:"t"`
}

// Action is the argument of a service action command
type Action struct {
	Api `msgpack:"-"`

	Params    []*Param    `msgpack:"p"`
	Transport *Transport  `msgpack:"T"`
	Return    interface{} `msgpack:"R,omitempty"`

	hasReturn bool
}

// GetActionName returns the name of the action being run
func (a *Action) GetActionName() string {
	return a.context.ComponentType
}

func (a *Action) HasParam(name string) bool {
	_, found := a.findParam(name)
	return found
}

// GetParam returns the named parameter, or an empty string parameter when it was not sent
func (a *Action) GetParam(name string) *Param {
	if param, found := a.findParam(name); found {
		return param
	}

	return &Param{Name: name, Type: TypeString, Value: ""}
}

func (a *Action) GetParams() []*Param {
	return a.Params
}

// SetProperty sets a userland property in the transport
func (a *Action) SetProperty(name string, value string) {
	meta := a.transport().Meta
	if meta.Properties == nil {
		meta.Properties = map[string]string{}
	}

	meta.Properties[name] = value
}

// SetEntity adds a single entity to the data the action returns
func (a *Action) SetEntity(entity map[string]interface{}) {
	a.addData(entity)
}

// SetCollection adds a list of entities to the data the action returns
func (a *Action) SetCollection(collection []map[string]interface{}) {
	a.addData(collection)
}

// SetLink adds a link, as seen from this service, to the transport
func (a *Action) SetLink(link string, uri string) {
	transport := a.transport()
	if transport.Links == nil {
		transport.Links = map[string]map[string]map[string]string{}
	}

	address := transport.GetPublicGatewayAddress()
	if transport.Links[address] == nil {
		transport.Links[address] = map[string]map[string]string{}
	}

	if transport.Links[address][a.GetName()] == nil {
		transport.Links[address][a.GetName()] = map[string]string{}
	}

	transport.Links[address][a.GetName()][link] = uri
}

// Call registers a call to another service, to be run by the gateway after this action
func (a *Action) Call(service string, version string, action string, params []*Param, timeout int) {
	transport := a.transport()
	if transport.Calls == nil {
		transport.Calls = map[string]map[string][]*ServiceCall{}
	}

	if transport.Calls[a.GetName()] == nil {
		transport.Calls[a.GetName()] = map[string][]*ServiceCall{}
	}

	transport.Calls[a.GetName()][a.GetVersion()] = append(transport.Calls[a.GetName()][a.GetVersion()],
		&ServiceCall{
			Service: service,
			Version: version,
			Action:  action,
			Caller:  a.GetActionName(),
			Timeout: timeout,
			Params:  params,
		})
}

// Commit registers an action of this service to be run when the request succeeds
func (a *Action) Commit(action string, params []*Param) {
	a.addTransaction(TransactionCommit, action, params)
}

// Rollback registers an action of this service to be run when the request fails
func (a *Action) Rollback(action string, params []*Param) {
	a.addTransaction(TransactionRollback, action, params)
}

// Complete registers an action of this service to be run once the request ends
func (a *Action) Complete(action string, params []*Param) {
	a.addTransaction(TransactionComplete, action, params)
}

// SetDownload sets the file the gateway sends back as the response body
func (a *Action) SetDownload(file *File) {
	a.transport().Body = file
}

// Error registers an error produced by this service
func (a *Action) Error(message string, code int, status string) {
	transport := a.transport()
	if transport.Errors == nil {
		transport.Errors = map[string]map[string]map[string][]ErrorDetail{}
	}

	address := transport.GetPublicGatewayAddress()
	if transport.Errors[address] == nil {
		transport.Errors[address] = map[string]map[string][]ErrorDetail{}
	}

	if transport.Errors[address][a.GetName()] == nil {
		transport.Errors[address][a.GetName()] = map[string][]ErrorDetail{}
	}

	transport.Errors[address][a.GetName()][a.GetVersion()] = append(
		transport.Errors[address][a.GetName()][a.GetVersion()],
		ErrorDetail{Message: message, Code: code, Status: status})
}

// SetReturn sets the value returned to the caller of the action
func (a *Action) SetReturn(value interface{}) {
	a.Return = value
	a.hasReturn = true
}

func (a *Action) HasReturn() bool {
	return a.hasReturn || a.Return != nil
}

// GetReturn returns the value set with SetReturn
func (a *Action) GetReturn() (interface{}, error) {
	if !a.HasReturn() {
		return nil, errors.Errorf("No return value defined on %s (%s) for action: %s",
			a.GetName(),
			a.GetVersion(),
			a.GetActionName())
	}

	return a.Return, nil
}

func (a *Action) findParam(name string) (*Param, bool) {
	return lo.Find(a.Params, func(param *Param) bool {
		return param != nil && param.Name == name
	})
}

func (a *Action) transport() *Transport {
	if a.Transport == nil {
		a.Transport = &Transport{}
	}

	if a.Transport.Meta == nil {
		a.Transport.Meta = &TransportMeta{}
	}

	return a.Transport
}

func (a *Action) addData(value interface{}) {
	transport := a.transport()
	if transport.Data == nil {
		transport.Data = map[string]map[string]map[string]ActionData{}
	}

	address := transport.GetPublicGatewayAddress()
	if transport.Data[address] == nil {
		transport.Data[address] = map[string]map[string]ActionData{}
	}

	if transport.Data[address][a.GetName()] == nil {
		transport.Data[address][a.GetName()] = map[string]ActionData{}
	}

	if transport.Data[address][a.GetName()][a.GetVersion()] == nil {
		transport.Data[address][a.GetName()][a.GetVersion()] = ActionData{}
	}

	actionData := transport.Data[address][a.GetName()][a.GetVersion()]
	actionData[a.GetActionName()] = append(actionData[a.GetActionName()], value)
}

func (a *Action) addTransaction(kind string, action string, params []*Param) {
	transport := a.transport()
	if transport.Transactions == nil {
		transport.Transactions = map[string][]*Transaction{}
	}

	transport.Transactions[kind] = append(transport.Transactions[kind], &Transaction{
		Name:    a.GetName(),
		Version: a.GetVersion(),
		Action:  action,
		Caller:  a.GetActionName(),
		Params:  params,
	})
}
