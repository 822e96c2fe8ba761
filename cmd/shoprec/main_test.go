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

package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gorse-io/shoprec/config"
	"github.com/gorse-io/shoprec/logics"
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/stretchr/testify/assert"
)

func TestPrintRecommendations(t *testing.T) {
	var buf bytes.Buffer
	err := printRecommendations(&buf, []logics.Recommendation{
		{Product: data.Product{ProductId: 2, Name: "Pan", Category: "kitchen", Price: 45}, Score: 0.8125},
		{Product: data.Product{ProductId: 4, Name: "Mug", Category: "kitchen", Price: 8}, Score: 0.785},
	})
	assert.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Pan")
	assert.Contains(t, output, "45.00")
	assert.Contains(t, output, "0.8125")
	assert.Contains(t, output, "Mug")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Pan")), bytes.Index(buf.Bytes(), []byte("Mug")))
}

func TestPrintInteractions(t *testing.T) {
	var buf bytes.Buffer
	err := printInteractions(&buf, []logics.InteractionDetail{{
		Interaction: data.Interaction{
			InteractionId:   1,
			UserId:          1,
			ProductId:       3,
			InteractionType: data.AddToCart,
			Timestamp:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Name:     "Lamp",
		Category: "home",
		Price:    30,
	}})
	assert.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "2024-05-01 12:00:00")
	assert.Contains(t, output, "add_to_cart")
	assert.Contains(t, output, "Lamp")
}

func TestOpenDatabase(t *testing.T) {
	conf := config.GetDefaultConfig()
	conf.Database.DataStore = fmt.Sprintf("sqlite://%s/data.db", t.TempDir())
	database, err := openDatabase(conf)
	assert.NoError(t, err)
	assert.NoError(t, database.Init())
	users, err := database.GetUsers(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, database.Close())

	conf.Database.DataStore = "redis://localhost:6379"
	_, err = openDatabase(conf)
	assert.Error(t, err)
}
