// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorse-io/shoprec/config"
	"github.com/gorse-io/shoprec/server"
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/stretchr/testify/suite"
)

const apiKey = "test_api_key"

type ShoprecClientTestSuite struct {
	suite.Suite
	database data.Database
	server   *httptest.Server
	client   *ShoprecClient
}

func (suite *ShoprecClientTestSuite) SetupTest() {
	var err error
	suite.database, err = data.Open(fmt.Sprintf("sqlite://%s/data.db", suite.T().TempDir()), "")
	suite.NoError(err)
	suite.NoError(suite.database.Init())
	cfg := config.GetDefaultConfig()
	cfg.Server.APIKey = apiKey
	s, err := server.NewRestServer(cfg, suite.database)
	suite.NoError(err)
	suite.server = httptest.NewServer(s.Handler())
	suite.client = NewShoprecClient(suite.server.URL, apiKey)
}

func (suite *ShoprecClientTestSuite) TearDownTest() {
	suite.server.Close()
	suite.NoError(suite.database.Close())
}

func (suite *ShoprecClientTestSuite) TestRecommend() {
	ctx := context.Background()
	health, err := suite.client.Health(ctx)
	suite.NoError(err)
	suite.True(health.Ready)

	rowAffected, err := suite.client.InsertUsers(ctx, []data.User{{UserId: 1}})
	suite.NoError(err)
	suite.Equal(1, rowAffected.RowAffected)
	rowAffected, err = suite.client.InsertProducts(ctx, []data.Product{
		{ProductId: 1, Name: "A", Category: "X", Price: 10},
		{ProductId: 2, Name: "B", Category: "X", Price: 20},
		{ProductId: 3, Name: "C", Category: "Y", Price: 10},
	})
	suite.NoError(err)
	suite.Equal(3, rowAffected.RowAffected)
	rowAffected, err = suite.client.InsertInteractions(ctx, []data.Interaction{{
		InteractionId:   1,
		UserId:          1,
		ProductId:       1,
		InteractionType: data.View,
		Timestamp:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}})
	suite.NoError(err)
	suite.Equal(1, rowAffected.RowAffected)

	recommendations, err := suite.client.GetRecommend(ctx, 1, 5)
	suite.NoError(err)
	if suite.Len(recommendations, 2) {
		suite.Equal("B", recommendations[0].Name)
		suite.Equal("C", recommendations[1].Name)
	}
	recommendations, err = suite.client.GetRecommend(ctx, 100, 5)
	suite.NoError(err)
	suite.Empty(recommendations)

	details, err := suite.client.GetUserInteractions(ctx, 1)
	suite.NoError(err)
	if suite.Len(details, 1) {
		suite.Equal("A", details[0].Name)
		suite.Equal(data.View, details[0].InteractionType)
	}
}

func (suite *ShoprecClientTestSuite) TestErrors() {
	ctx := context.Background()
	_, err := suite.client.InsertInteractions(ctx, []data.Interaction{{UserId: 1, ProductId: 1, InteractionType: "purchase"}})
	suite.Error(err)
	suite.Contains(err.Error(), "unrecognized interaction kind")

	unauthorized := NewShoprecClient(suite.server.URL, "wrong")
	_, err = unauthorized.GetRecommend(ctx, 1, 5)
	suite.Error(err)
	suite.Contains(err.Error(), "unauthorized")
}

func TestShoprecClient(t *testing.T) {
	suite.Run(t, new(ShoprecClientTestSuite))
}
