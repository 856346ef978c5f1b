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
	"github.com/kusanagi/katana-sdk-go/pkg/api"
	"github.com/kusanagi/katana-sdk-go/pkg/codec"
)

func buildActionReply(commandName string, action *api.Action) api.Reply {
	var metadata byte
	if action.Transport != nil {
		metadata = action.Transport.GetMetadata()
	}

	return api.NewCommandReply(commandName, &api.ActionResult{
		Transport: action.Transport,
		Return:    action.Return,
	}, metadata)
}

// a request either calls a service or, when the middleware created a response, answers the client
func buildRequestReply(commandName string, request *api.Request) api.Reply {
	if request.HasResponse() {
		return api.NewCommandReply(commandName, &api.ResponseResult{
			Response: request.GetResponse(),
		}, codec.MetadataEmpty)
	}

	return api.NewCommandReply(commandName, &api.CallResult{
		Call: request.Call,
	}, codec.MetadataEmpty)
}

func buildResponseReply(commandName string, response *api.Response) api.Reply {
	return api.NewCommandReply(commandName, &api.ResponseResult{
		Response: response.GetHttpResponse(),
	}, codec.MetadataEmpty)
}

// register bindings
func init() {
	RegistrySingleton.Register(KindAction, NewBinding(KindAction,
		func() *api.Action { return &api.Action{} },
		buildActionReply))

	RegistrySingleton.Register(KindRequest, NewBinding(KindRequest,
		func() *api.Request { return &api.Request{} },
		buildRequestReply))

	RegistrySingleton.Register(KindResponse, NewBinding(KindResponse,
		func() *api.Response { return &api.Response{} },
		buildResponseReply))
}
