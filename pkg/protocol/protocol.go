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

package protocol

import (
	"reflect"

	"github.com/kusanagi/katana-sdk-go/pkg/api"
	"github.com/kusanagi/katana-sdk-go/pkg/codec"
	"github.com/kusanagi/katana-sdk-go/pkg/registry"

	"github.com/nuclio/errors"
)

// binding kinds
const (
	KindAction   = "action"
	KindRequest  = "request"
	KindResponse = "response"
)

// ErrHandlerType is returned when a handler does not match the argument type of its binding
var ErrHandlerType = errors.New("Handler does not match binding")

// Binding knows how to decode the command of one component type, run a handler on it and
// build the typed reply
type Binding interface {

	// GetKind returns the kind the binding is registered under
	GetKind() string

	// Decode decodes command bytes into a typed command payload
	Decode(commandCodec codec.Codec, command []byte) (Invocation, error)
}

// Invocation is a decoded command waiting for its handler
type Invocation interface {

	// GetCommandName returns the name of the decoded command
	GetCommandName() string

	// Invoke attaches the context to the argument, runs handler and builds the reply
	Invoke(context api.Context, handler interface{}) (api.Reply, error)
}

// RegistrySingleton holds the bindings of every supported component type
var RegistrySingleton = registry.NewRegistry[Binding]("binding")

type binding[T api.Argument] struct {
	kind        string
	newArgument func() T
	buildReply  func(commandName string, argument T) api.Reply
}

// NewBinding creates a binding for argument type T
func NewBinding[T api.Argument](kind string,
	newArgument func() T,
	buildReply func(commandName string, argument T) api.Reply) Binding {

	return &binding[T]{
		kind:        kind,
		newArgument: newArgument,
		buildReply:  buildReply,
	}
}

func (b *binding[T]) GetKind() string {
	return b.kind
}

func (b *binding[T]) Decode(commandCodec codec.Codec, command []byte) (Invocation, error) {
	commandPayload := api.CommandPayload[T]{}
	commandPayload.Command.Argument = b.newArgument()

	if err := commandCodec.Decode(command, &commandPayload); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode %s command", b.kind)
	}

	// an explicit nil argument on the wire replaces the one we allocated
	if isNil(commandPayload.Command.Argument) {
		commandPayload.Command.Argument = b.newArgument()
	}

	return &invocation[T]{
		binding: b,
		payload: &commandPayload,
	}, nil
}

type invocation[T api.Argument] struct {
	binding *binding[T]
	payload *api.CommandPayload[T]
}

func (i *invocation[T]) GetCommandName() string {
	return i.payload.Command.Name
}

func (i *invocation[T]) Invoke(context api.Context, handler interface{}) (api.Reply, error) {
	typedHandler, isTyped := handler.(api.Handler[T])
	if !isTyped {
		return nil, errors.Wrapf(ErrHandlerType, "Expected a %s handler, got %T", i.binding.kind, handler)
	}

	argument := i.payload.Command.Argument
	argument.Attach(context)

	result, err := typedHandler(argument)
	if err != nil {
		return nil, err
	}

	if isNil(result) {
		result = argument
	}

	return i.binding.buildReply(i.payload.Command.Name, result), nil
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}

	reflectValue := reflect.ValueOf(value)
	return reflectValue.Kind() == reflect.Ptr && reflectValue.IsNil()
}
