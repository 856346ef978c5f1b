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
	"testing"

	"github.com/kusanagi/katana-sdk-go/pkg/codec"
	"github.com/kusanagi/katana-sdk-go/pkg/schema"

	"github.com/nuclio/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockComponent struct {
	mock.Mock
}

func (mc *mockComponent) HasResource(name string) bool {
	args := mc.Called(name)
	return args.Bool(0)
}

func (mc *mockComponent) GetResource(name string) (interface{}, error) {
	args := mc.Called(name)
	return args.Get(0), args.Error(1)
}

type ApiTestSuite struct {
	suite.Suite
	context Context
}

func (suite *ApiTestSuite) SetupTest() {
	suite.context = Context{
		ComponentType:    "read",
		Name:             "Users",
		Version:          "1.0.0",
		FrameworkVersion: "1.0.0",
		Variables:        map[string]string{"workers": "2"},
		Debug:            true,
		Mapping:          schema.NewMapping(),
	}
}

func (suite *ApiTestSuite) TestContextAttributes() {
	action := &Action{}
	action.Attach(suite.context)

	suite.Require().Equal("read", action.GetActionName())
	suite.Require().Equal("Users", action.GetName())
	suite.Require().Equal("1.0.0", action.GetVersion())
	suite.Require().True(action.IsDebug())
	suite.Require().True(action.Log("message"))
	suite.Require().Empty(action.GetServices())

	value, found := action.GetVariable("workers")
	suite.Require().True(found)
	suite.Require().Equal("2", value)

	// the variables handed out are a copy
	action.GetVariables()["workers"] = "3"
	value, _ = action.GetVariable("workers")
	suite.Require().Equal("2", value)

	_, err := action.GetServiceSchema("Posts", "1.0.0")
	suite.Require().Equal(schema.ErrUndefined, errors.RootCause(err))
}

func (suite *ApiTestSuite) TestResources() {
	component := &mockComponent{}
	component.On("HasResource", "db").Return(true).Once()
	component.On("GetResource", "db").Return("connection", nil).Once()

	suite.context.Component = component

	request := &Request{}
	request.Attach(suite.context)

	suite.Require().True(request.HasResource("db"))
	resource, err := request.GetResource("db")
	suite.Require().NoError(err)
	suite.Require().Equal("connection", resource)

	component.AssertExpectations(suite.T())
}

func (suite *ApiTestSuite) TestActionTransportMetadata() {
	action := &Action{
		Params: []*Param{{Name: "id", Value: 1, Type: TypeInteger}},
		Transport: &Transport{
			Meta: &TransportMeta{Gateway: []string{"internal:1", "public:80"}},
		},
	}
	action.Attach(suite.context)

	suite.Require().True(action.HasParam("id"))
	suite.Require().Equal(1, action.GetParam("id").Value)
	suite.Require().False(action.HasParam("missing"))
	suite.Require().Equal("", action.GetParam("missing").Value)

	action.SetEntity(map[string]interface{}{"id": 1})
	suite.Require().Len(action.Transport.Data["public:80"]["Users"]["1.0.0"]["read"], 1)
	suite.Require().Equal(byte(0), action.Transport.GetMetadata())

	action.Call("Posts", "1.0.0", "list", nil, 1000)
	suite.Require().Equal(codec.MetadataServiceCalls, action.Transport.GetMetadata())

	action.Commit("save", nil)
	action.SetDownload(&File{Name: "report", Path: "file:///tmp/report.pdf"})
	suite.Require().Equal(codec.MetadataServiceCalls|codec.MetadataTransactions|codec.MetadataDownload,
		action.Transport.GetMetadata())

	_, err := action.GetReturn()
	suite.Require().Error(err)

	action.SetReturn(false)
	returnValue, err := action.GetReturn()
	suite.Require().NoError(err)
	suite.Require().Equal(false, returnValue)
}

func (suite *ApiTestSuite) TestRequestServiceCall() {
	request := &Request{
		HTTPRequest: &HttpRequest{Version: "1.1", Method: "get", URL: "http://example.com/1.0.0/users/42?x=1"},
	}
	request.Attach(suite.context)

	suite.Require().True(request.GetHttpRequest().IsMethod("GET"))
	suite.Require().Equal("/1.0.0/users/42", request.GetHttpRequest().GetURLPath())

	request.SetServiceName("users")
	request.SetServiceVersion("1.0.0")
	request.SetActionName("read")
	request.SetParam(&Param{Name: "id", Value: "41"})
	request.SetParam(&Param{Name: "id", Value: "42"})

	suite.Require().Len(request.GetParams(), 1)
	suite.Require().Equal("42", request.GetParam("id").Value)
	suite.Require().False(request.HasResponse())

	response := request.NewResponse(404, "")
	suite.Require().True(request.HasResponse())
	suite.Require().Equal("404 Not Found", response.Status)
	suite.Require().Equal(404, response.GetStatusCode())
	suite.Require().Equal("Not Found", response.GetStatusText())
}

func (suite *ApiTestSuite) TestErrorPayload() {
	errorPayload := NewErrorPayload("boom")

	suite.Require().Equal(codec.MetadataFailure, errorPayload.Metadata())
	suite.Require().Equal(1, errorPayload.Error.Code)
	suite.Require().Equal(InternalServerErrorStatus, errorPayload.Error.Status)
	suite.Require().Equal("boom", errorPayload.Error.Message)
}

func TestApiTestSuite(t *testing.T) {
	suite.Run(t, new(ApiTestSuite))
}
