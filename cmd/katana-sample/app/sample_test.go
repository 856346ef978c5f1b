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

package app

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/kusanagi/katana-sdk-go/pkg/api"
	"github.com/kusanagi/katana-sdk-go/pkg/component"
	"github.com/kusanagi/katana-sdk-go/pkg/config"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type SampleTestSuite struct {
	suite.Suite
	logger  logger.Logger
	service *component.Service
}

func (suite *SampleTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")

	configuration, err := config.Parse([]string{"-p", "1.0.0", "-c", "service", "-n", "users", "-v", "1.0.0"})
	suite.Require().NoError(err)

	suite.service, err = component.NewServiceFromConfiguration(suite.logger, configuration)
	suite.Require().NoError(err)
	suite.Require().NoError(registerUsersService(suite.service))
}

func (suite *SampleTestSuite) TestRegisteredActions() {
	suite.Require().Equal([]string{"create", "delete", "list", "read"}, suite.service.GetActions())
}

func (suite *SampleTestSuite) TestUsersLifecycle() {
	created := suite.runAction("create", createUser, &api.Param{Name: "name", Value: "alice"})
	createdUsers := suite.actionData(created, "create")
	suite.Require().Len(createdUsers, 1)
	suite.Require().Equal("alice", createdUsers[0].(map[string]interface{})["name"])
	suite.Require().Len(created.Transport.Transactions[api.TransactionRollback], 1)

	suite.runAction("create", createUser, &api.Param{Name: "name", Value: "bob"})

	read := suite.runAction("read", readUser, &api.Param{Name: "id", Value: "1"})
	suite.Require().Equal("alice", suite.actionData(read, "read")[0].(map[string]interface{})["name"])

	listed := suite.runAction("list", listUsers)
	collection := suite.actionData(listed, "list")[0].([]map[string]interface{})
	suite.Require().Len(collection, 2)
	suite.Require().Equal("bob", collection[1]["name"])

	deleted := suite.runAction("delete", deleteUser, &api.Param{Name: "id", Value: "1"})
	returned, err := deleted.GetReturn()
	suite.Require().NoError(err)
	suite.Require().Equal(true, returned)

	missing := suite.runAction("read", readUser, &api.Param{Name: "id", Value: "1"})
	suite.Require().NotEmpty(missing.Transport.Errors)
}

func (suite *SampleTestSuite) TestCreateWithoutName() {
	action := suite.runAction("create", createUser)
	suite.Require().NotEmpty(action.Transport.Errors)
	suite.Require().Empty(action.Transport.Data)
}

func (suite *SampleTestSuite) TestRouteRequest() {
	for _, testCase := range []struct {
		name             string
		method           string
		url              string
		expectedAction   string
		expectedID       string
		expectedResponse int
	}{
		{name: "list", method: "GET", url: "http://gateway/users", expectedAction: "list"},
		{name: "listTrailingSlash", method: "get", url: "http://gateway/users/", expectedAction: "list"},
		{name: "create", method: "POST", url: "http://gateway/users", expectedAction: "create"},
		{name: "read", method: "GET", url: "http://gateway/users/7", expectedAction: "read", expectedID: "7"},
		{name: "delete", method: "DELETE", url: "http://gateway/users/7", expectedAction: "delete", expectedID: "7"},
		{name: "otherPath", method: "GET", url: "http://gateway/posts", expectedResponse: http.StatusNotFound},
		{name: "prefixOnly", method: "GET", url: "http://gateway/usersx", expectedResponse: http.StatusNotFound},
		{name: "nested", method: "GET", url: "http://gateway/users/7/posts", expectedResponse: http.StatusNotFound},
		{name: "badMethod", method: "PATCH", url: "http://gateway/users", expectedResponse: http.StatusMethodNotAllowed},
	} {
		suite.Run(testCase.name, func() {
			request := &api.Request{
				HTTPRequest: &api.HttpRequest{
					Version:  "1.1",
					Method:   testCase.method,
					URL:      testCase.url,
					PostData: map[string][]string{"name": {"carol"}},
				},
			}

			routed, err := routeRequest(request)
			suite.Require().NoError(err)

			if testCase.expectedResponse != 0 {
				suite.Require().True(routed.HasResponse())
				suite.Require().Equal(testCase.expectedResponse, routed.GetResponse().GetStatusCode())
				return
			}

			suite.Require().False(routed.HasResponse())
			suite.Require().Equal(usersServiceName, routed.GetServiceName())
			suite.Require().Equal(usersServiceVersion, routed.GetServiceVersion())
			suite.Require().Equal(testCase.expectedAction, routed.GetActionName())

			if testCase.expectedID != "" {
				suite.Require().Equal(testCase.expectedID, routed.GetParam("id").Value)
			}

			if testCase.expectedAction == "create" {
				suite.Require().Equal("carol", routed.GetParam("name").Value)
			}
		})
	}
}

func (suite *SampleTestSuite) TestDecorateResponse() {
	response := &api.Response{}
	response.Attach(api.Context{Version: "2.1.0"})

	decorated, err := decorateResponse(response)
	suite.Require().NoError(err)
	suite.Require().Equal("2.1.0", decorated.GetHttpResponse().GetHeader(sampleHeaderName, ""))
}

func (suite *SampleTestSuite) TestHelp() {
	output := bytes.Buffer{}

	commandeer := NewRootCommandeer()
	commandeer.GetCmd().SetArgs([]string{"--help"})
	commandeer.GetCmd().SetOut(&output)

	suite.Require().NoError(commandeer.Execute())
	suite.Require().Contains(output.String(), "--framework-version")
}

func (suite *SampleTestSuite) TestInvalidArguments() {
	commandeer := NewRootCommandeer()
	commandeer.GetCmd().SetArgs([]string{"-p", "1.0.0", "-c", "gateway", "-n", "users", "-v", "1.0.0"})

	err := commandeer.Execute()
	suite.Require().Error(err)
	suite.Require().Equal(config.ErrConfiguration, errors.RootCause(err))
}

func (suite *SampleTestSuite) runAction(actionName string, handler api.ActionHandler, params ...*api.Param) *api.Action {
	action := &api.Action{Params: params}
	action.Attach(api.Context{
		Component:     suite.service.Component,
		ComponentType: actionName,
		Name:          "users",
		Version:       "1.0.0",
	})

	result, err := handler(action)
	suite.Require().NoError(err)
	suite.Require().NotNil(result.Transport)

	return result
}

func (suite *SampleTestSuite) actionData(action *api.Action, actionName string) []interface{} {
	return action.Transport.Data[action.Transport.GetPublicGatewayAddress()]["users"]["1.0.0"][actionName]
}

func TestSampleTestSuite(t *testing.T) {
	suite.Run(t, new(SampleTestSuite))
}
