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

package processor

import (
	"testing"

	"github.com/kusanagi/katana-sdk-go/pkg/api"
	"github.com/kusanagi/katana-sdk-go/pkg/codec"
	"github.com/kusanagi/katana-sdk-go/pkg/protocol"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockResolver struct {
	mock.Mock
}

func (mr *mockResolver) Resolve(componentType string) (protocol.Binding, interface{}, error) {
	args := mr.Called(componentType)

	binding, _ := args.Get(0).(protocol.Binding)
	return binding, args.Get(1), args.Error(2)
}

// mockCodec delegates decoding to msgpack and fails every encode
type mockCodec struct {
	*codec.MsgPack
	mock.Mock
}

func (mc *mockCodec) Encode(value interface{}) ([]byte, error) {
	args := mc.Called(value)
	return nil, args.Error(0)
}

type ProcessorTestSuite struct {
	suite.Suite
	logger              logger.Logger
	codec               *codec.MsgPack
	resolver            *mockResolver
	errors              []error
	processorStatistics *Statistics
}

func (suite *ProcessorTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.codec = codec.NewMsgPack()
	suite.resolver = &mockResolver{}
	suite.errors = nil
}

func (suite *ProcessorTestSuite) TestActionRoundTrip() {
	var receivedAction *api.Action

	handler := api.ActionHandler(func(action *api.Action) (*api.Action, error) {
		receivedAction = action

		action.SetEntity(map[string]interface{}{"id": action.GetParam("id").Value})
		action.Call("Posts", "1.0.0", "list", nil, 0)
		return action, nil
	})

	suite.expectResolve("read", protocol.KindAction, handler)

	mapping := suite.encode(map[string]interface{}{
		"Users": map[string]interface{}{
			"1.0.0": map[string]interface{}{
				"ac": map[string]interface{}{"read": map[string]interface{}{}},
			},
		},
	})

	command := suite.encode(map[string]interface{}{
		"m": map[string]interface{}{"s": "Users"},
		"c": map[string]interface{}{
			"n": "runtime-call",
			"a": map[string]interface{}{
				"p": []interface{}{map[string]interface{}{"n": "id", "v": 42, "t": "integer"}},
				"T": map[string]interface{}{
					"m": map[string]interface{}{"g": []interface{}{"internal:1", "public:80"}},
				},
			},
		},
	})

	reply := suite.createProcessor(suite.codec).Process([][]byte{[]byte("read"), mapping, command})
	suite.Require().Len(reply, codec.ReplyFrameCount)
	suite.Require().Equal([]byte{codec.MetadataServiceCalls}, reply[0])

	// context attributes were attached before the handler ran
	suite.Require().NotNil(receivedAction)
	suite.Require().Equal("read", receivedAction.GetActionName())
	suite.Require().Equal("Users", receivedAction.GetName())
	suite.Require().Equal("2.0.0", receivedAction.GetFrameworkVersion())
	serviceSchema, err := receivedAction.GetServiceSchema("Users", "1.0.0")
	suite.Require().NoError(err)
	suite.Require().True(serviceSchema.HasAction("read"))

	decodedReply, err := suite.codec.DecodeMap(reply[1])
	suite.Require().NoError(err)

	commandReply := decodedReply["cr"].(map[string]interface{})
	suite.Require().Equal("runtime-call", commandReply["n"])

	transport := commandReply["r"].(map[string]interface{})["T"].(map[string]interface{})
	suite.Require().Contains(transport, "d")
	suite.Require().Contains(transport, "c")

	suite.Require().Empty(suite.errors)
	suite.Require().Equal(uint64(1), suite.processorStatistics.RequestsHandledSuccess)
}

func (suite *ProcessorTestSuite) TestRequestWithoutMapping() {
	handler := api.RequestHandler(func(request *api.Request) (*api.Request, error) {
		request.SetServiceName("users")
		request.SetServiceVersion("1.0.0")
		request.SetActionName("list")

		// returning nil keeps the argument
		return nil, nil
	})

	suite.expectResolve("request", protocol.KindRequest, handler)

	command := suite.encode(map[string]interface{}{
		"c": map[string]interface{}{
			"n": "request",
			"a": map[string]interface{}{
				"r": map[string]interface{}{"m": "GET", "u": "http://example.com/1.0.0/users"},
			},
		},
	})

	reply := suite.createProcessor(suite.codec).Process([][]byte{[]byte("request"), {}, command})
	suite.Require().Equal([]byte{codec.MetadataEmpty}, reply[0])

	decodedReply, err := suite.codec.DecodeMap(reply[1])
	suite.Require().NoError(err)

	call := decodedReply["cr"].(map[string]interface{})["r"].(map[string]interface{})["c"].(map[string]interface{})
	suite.Require().Equal("users", call["s"])
	suite.Require().Equal("1.0.0", call["v"])
	suite.Require().Equal("list", call["a"])
}

func (suite *ProcessorTestSuite) TestMalformedMappingYieldsErrorPayload() {
	suite.expectResolve("read", protocol.KindAction, api.ActionHandler(func(action *api.Action) (*api.Action, error) {
		suite.Fail("handler must not run")
		return action, nil
	}))

	for _, mapping := range [][]byte{
		{0xc1},
		suite.encode([]interface{}{"Users"}),
		suite.encode(map[string]interface{}{"Users": "1.0.0"}),
		suite.encode(map[string]interface{}{"Users": map[string]interface{}{"1.0.0": map[string]interface{}{"ac": 1}}}),
	} {
		reply := suite.createProcessor(suite.codec).Process([][]byte{
			[]byte("read"),
			mapping,
			suite.encode(map[string]interface{}{"c": map[string]interface{}{"n": "read"}}),
		})

		suite.requireErrorPayload(reply, "")
	}

	suite.Require().Len(suite.errors, 4)
}

func (suite *ProcessorTestSuite) TestMalformedCommandYieldsErrorPayload() {
	suite.expectResolve("read", protocol.KindAction, api.ActionHandler(func(action *api.Action) (*api.Action, error) {
		return action, nil
	}))

	for _, command := range [][]byte{
		nil,
		{0xc1},
		suite.encode("not a command"),
		suite.encode(map[string]interface{}{"c": "not a command"}),
	} {
		reply := suite.createProcessor(suite.codec).Process([][]byte{[]byte("read"), {}, command})
		suite.requireErrorPayload(reply, "")

		suite.Require().Equal(codec.ErrMalformedEnvelope, errors.RootCause(suite.errors[len(suite.errors)-1]))
	}
}

func (suite *ProcessorTestSuite) TestWrongFrameCount() {
	reply := suite.createProcessor(suite.codec).Process([][]byte{[]byte("read")})
	suite.requireErrorPayload(reply, "")
}

func (suite *ProcessorTestSuite) TestUnknownComponentType() {
	suite.resolver.On("Resolve", "unknown").Return(nil, nil, errors.New("not found")).Once()

	reply := suite.createProcessor(suite.codec).Process([][]byte{[]byte("unknown"), {}, suite.encode(map[string]interface{}{})})
	suite.requireErrorPayload(reply, "")
	suite.Require().Equal(ErrHandler, errors.RootCause(suite.errors[0]))
}

func (suite *ProcessorTestSuite) TestHandlerError() {
	suite.expectResolve("read", protocol.KindAction, api.ActionHandler(func(action *api.Action) (*api.Action, error) {
		return nil, errors.New("user logic failed")
	}))

	reply := suite.createProcessor(suite.codec).Process([][]byte{
		[]byte("read"),
		{},
		suite.encode(map[string]interface{}{"c": map[string]interface{}{"n": "read"}}),
	})

	suite.requireErrorPayload(reply, "user logic failed")
	suite.Require().Equal(uint64(1), suite.processorStatistics.RequestsHandledError)
}

func (suite *ProcessorTestSuite) TestHandlerPanic() {
	suite.expectResolve("read", protocol.KindAction, api.ActionHandler(func(action *api.Action) (*api.Action, error) {
		panic("unexpected")
	}))

	reply := suite.createProcessor(suite.codec).Process([][]byte{
		[]byte("read"),
		{},
		suite.encode(map[string]interface{}{"c": map[string]interface{}{"n": "read"}}),
	})

	suite.requireErrorPayload(reply, "")
	suite.Require().Equal(ErrHandler, errors.RootCause(suite.errors[0]))
}

func (suite *ProcessorTestSuite) TestHandlerTypeMismatch() {
	suite.expectResolve("read", protocol.KindAction, api.RequestHandler(func(request *api.Request) (*api.Request, error) {
		return request, nil
	}))

	reply := suite.createProcessor(suite.codec).Process([][]byte{
		[]byte("read"),
		{},
		suite.encode(map[string]interface{}{"c": map[string]interface{}{"n": "read"}}),
	})

	suite.requireErrorPayload(reply, "")
	suite.Require().Equal(protocol.ErrHandlerType, errors.RootCause(suite.errors[0]))
}

func (suite *ProcessorTestSuite) TestEncodingFailureFallsBackToEmptyPayload() {
	failingCodec := &mockCodec{MsgPack: codec.NewMsgPack()}
	failingCodec.On("Encode", mock.Anything).Return(errors.Wrap(codec.ErrEncoding, "cannot encode"))

	suite.expectResolve("read", protocol.KindAction, api.ActionHandler(func(action *api.Action) (*api.Action, error) {
		return action, nil
	}))

	reply := suite.createProcessor(failingCodec).Process([][]byte{
		[]byte("read"),
		{},
		suite.encode(map[string]interface{}{"c": map[string]interface{}{"n": "read"}}),
	})

	suite.Require().Equal(codec.FailureReplyFrames(), reply)

	// the reply and then the error payload were attempted
	failingCodec.AssertNumberOfCalls(suite.T(), "Encode", 2)
	suite.Require().Equal(codec.ErrEncoding, errors.RootCause(suite.errors[0]))
}

func (suite *ProcessorTestSuite) TestErrorCallbackPanicIsContained() {
	processorInstance := NewProcessor(suite.logger, suite.codec, suite.resolver, api.Context{}, func(err error) {
		panic("callback failed")
	})

	reply := processorInstance.Process(nil)
	suite.requireErrorPayload(reply, "")
}

func (suite *ProcessorTestSuite) createProcessor(codecInstance codec.Codec) *Processor {
	processorInstance := NewProcessor(suite.logger,
		codecInstance,
		suite.resolver,
		api.Context{
			Name:             "Users",
			Version:          "1.0.0",
			FrameworkVersion: "2.0.0",
			Variables:        map[string]string{},
		},
		func(err error) {
			suite.errors = append(suite.errors, err)
		})

	suite.processorStatistics = processorInstance.GetStatistics()
	return processorInstance
}

func (suite *ProcessorTestSuite) expectResolve(componentType string, kind string, handler interface{}) {
	binding, err := protocol.RegistrySingleton.Get(kind)
	suite.Require().NoError(err)

	suite.resolver.On("Resolve", componentType).Return(binding, handler, nil)
}

func (suite *ProcessorTestSuite) encode(value interface{}) []byte {
	encoded, err := suite.codec.Encode(value)
	suite.Require().NoError(err)

	return encoded
}

func (suite *ProcessorTestSuite) requireErrorPayload(reply [][]byte, expectedMessage string) {
	suite.Require().Len(reply, codec.ReplyFrameCount)
	suite.Require().Equal([]byte{codec.MetadataFailure}, reply[0])

	errorPayload := api.ErrorPayload{}
	suite.Require().NoError(suite.codec.Decode(reply[1], &errorPayload))
	suite.Require().Equal(1, errorPayload.Error.Code)
	suite.Require().Equal(api.InternalServerErrorStatus, errorPayload.Error.Status)
	suite.Require().NotEmpty(errorPayload.Error.Message)

	if expectedMessage != "" {
		suite.Require().Equal(expectedMessage, errorPayload.Error.Message)
	}
}

func TestProcessorTestSuite(t *testing.T) {
	suite.Run(t, new(ProcessorTestSuite))
}
