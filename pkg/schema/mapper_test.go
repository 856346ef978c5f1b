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
	"testing"

	"github.com/kusanagi/katana-sdk-go/pkg/codec"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type MapperTestSuite struct {
	suite.Suite
	logger logger.Logger
	codec  *codec.MsgPack
	mapper *Mapper
}

func (suite *MapperTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.codec = codec.NewMsgPack()
	suite.mapper = NewMapper(suite.logger, suite.codec)
}

func (suite *MapperTestSuite) TestIdentityIsAttachedFromKeys() {
	mapping := suite.decodeMapping(map[string]interface{}{
		"Users": map[string]interface{}{
			"1.0.0": map[string]interface{}{
				"a": "127.0.0.1:5001",
				"ac": map[string]interface{}{
					"read": map[string]interface{}{
						"x": 1000,
						"D": true,
						"d": "/",
						"p": map[string]interface{}{
							"id":     map[string]interface{}{"t": "integer", "r": true},
							"fields": map[string]interface{}{"t": "array"},
						},
						"f": map[string]interface{}{
							"avatar": map[string]interface{}{"m": "image/png"},
						},
						"E": map[string]interface{}{
							"f": []interface{}{
								map[string]interface{}{"n": "id", "t": "integer"},
							},
							"F": []interface{}{
								map[string]interface{}{
									"n": "address",
									"f": []interface{}{map[string]interface{}{"n": "street"}},
									"F": []interface{}{map[string]interface{}{"n": "geo", "o": true}},
								},
							},
						},
						"C": []interface{}{[]interface{}{"Posts", "1.0.0", "list"}},
					},
					"list": map[string]interface{}{},
				},
			},
		},
	})

	serviceSchema, found := mapping.Get("Users", "1.0.0")
	suite.Require().True(found)
	suite.Require().Equal("Users", serviceSchema.Name)
	suite.Require().Equal("1.0.0", serviceSchema.Version)
	suite.Require().Equal("127.0.0.1:5001", serviceSchema.Address)
	suite.Require().Equal([]string{"list", "read"}, serviceSchema.GetActions())

	for _, actionName := range serviceSchema.GetActions() {
		actionSchema, err := serviceSchema.GetActionSchema(actionName)
		suite.Require().NoError(err)
		suite.Require().Equal(actionName, actionSchema.Name)

		for _, paramName := range actionSchema.GetParams() {
			paramSchema, err := actionSchema.GetParamSchema(paramName)
			suite.Require().NoError(err)
			suite.Require().Equal(paramName, paramSchema.Name)
		}
	}

	readSchema, err := serviceSchema.GetActionSchema("read")
	suite.Require().NoError(err)
	suite.Require().Equal(1000, readSchema.Timeout)
	suite.Require().True(readSchema.Deprecated)
	suite.Require().Equal("/", readSchema.PathDelimiter)
	suite.Require().Equal([]string{"fields", "id"}, readSchema.GetParams())
	suite.Require().True(readSchema.Params["id"].Required)
	suite.Require().Equal("integer", readSchema.Params["id"].Type)
	suite.Require().Equal("avatar", readSchema.Files["avatar"].Name)
	suite.Require().Equal([][]string{{"Posts", "1.0.0", "list"}}, readSchema.Calls)

	// the entity keeps its tree shape
	suite.Require().Len(readSchema.Entity.Field, 1)
	suite.Require().Len(readSchema.Entity.Fields, 1)
	suite.Require().Equal("address", readSchema.Entity.Fields[0].Name)
	suite.Require().Equal("street", readSchema.Entity.Fields[0].Field[0].Name)
	suite.Require().Equal("geo", readSchema.Entity.Fields[0].Fields[0].Name)
	suite.Require().True(readSchema.Entity.Fields[0].Fields[0].Optional)
}

func (suite *MapperTestSuite) TestMultipleServicesAndVersions() {
	mapping := suite.decodeMapping(map[string]interface{}{
		"Users": map[string]interface{}{
			"1.0.0": map[string]interface{}{},
			"2.0.0": map[string]interface{}{},
		},
		"Posts": map[string]interface{}{
			"0.1.0": map[string]interface{}{},
		},
	})

	suite.Require().Equal([]string{"Posts", "Users"}, mapping.GetServices())
	suite.Require().Equal([]string{"1.0.0", "2.0.0"}, mapping.GetVersions("Users"))

	serviceSchema, err := mapping.GetServiceSchema("Users", "2.0.0")
	suite.Require().NoError(err)
	suite.Require().Equal("2.0.0", serviceSchema.Version)
	suite.Require().Empty(serviceSchema.GetActions())
}

func (suite *MapperTestSuite) TestAbsentMappingIsEmpty() {
	mapping, err := suite.mapper.Decode(nil)
	suite.Require().NoError(err)
	suite.Require().True(mapping.IsEmpty())

	// a miss is "no schema", not a failure
	serviceSchema, found := mapping.Get("Users", "1.0.0")
	suite.Require().False(found)
	suite.Require().Nil(serviceSchema)

	_, err = mapping.GetServiceSchema("Users", "1.0.0")
	suite.Require().Equal(ErrUndefined, errors.RootCause(err))
}

func (suite *MapperTestSuite) TestMalformedMapping() {
	for _, testCase := range []struct {
		name       string
		rawMapping interface{}
	}{
		{name: "NotAMap", rawMapping: []interface{}{"Users"}},
		{name: "VersionsNotAMap", rawMapping: map[string]interface{}{"Users": "1.0.0"}},
		{name: "SchemaNotAMap", rawMapping: map[string]interface{}{
			"Users": map[string]interface{}{"1.0.0": 5},
		}},
		{name: "ActionsNotAMap", rawMapping: map[string]interface{}{
			"Users": map[string]interface{}{"1.0.0": map[string]interface{}{"ac": 5}},
		}},
		{name: "ParamsNotAMap", rawMapping: map[string]interface{}{
			"Users": map[string]interface{}{"1.0.0": map[string]interface{}{
				"ac": map[string]interface{}{"read": map[string]interface{}{"p": "id"}},
			}},
		}},
	} {
		suite.Run(testCase.name, func() {
			encoded, err := suite.codec.Encode(testCase.rawMapping)
			suite.Require().NoError(err)

			_, err = suite.mapper.Decode(encoded)
			suite.Require().Error(err)
			suite.Require().Equal(ErrSchemaDecode, errors.RootCause(err))
		})
	}

	_, err := suite.mapper.Decode([]byte{0xc1})
	suite.Require().Equal(ErrSchemaDecode, errors.RootCause(err))
}

func (suite *MapperTestSuite) TestAttachIdentityFillsEmptyEntries() {
	serviceSchema := AttachIdentity(&ServiceSchema{
		Actions: map[string]*ActionSchema{
			"read": {Params: map[string]*ParamSchema{"id": nil}},
			"list": nil,
		},
	}, "Users", "1.0.0")

	suite.Require().Equal("Users", serviceSchema.Name)
	suite.Require().Equal("list", serviceSchema.Actions["list"].Name)
	suite.Require().Equal("id", serviceSchema.Actions["read"].Params["id"].Name)
}

func (suite *MapperTestSuite) decodeMapping(rawMapping map[string]interface{}) *Mapping {
	encoded, err := suite.codec.Encode(rawMapping)
	suite.Require().NoError(err)

	mapping, err := suite.mapper.Decode(encoded)
	suite.Require().NoError(err)

	return mapping
}

func TestMapperTestSuite(t *testing.T) {
	suite.Run(t, new(MapperTestSuite))
}
