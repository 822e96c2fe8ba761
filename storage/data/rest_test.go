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

package data

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorse-io/shoprec/storage"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

type mockServices struct {
	sync.Mutex
	users        string
	products     string
	interactions string
	posted       []map[string]any
	failures     atomic.Int32
}

func (m *mockServices) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.failures.Load() > 0 {
		m.failures.Add(-1)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	m.Lock()
	defer m.Unlock()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/users":
		_, _ = io.WriteString(w, m.users)
	case r.Method == http.MethodGet && r.URL.Path == "/products":
		_, _ = io.WriteString(w, m.products)
	case r.Method == http.MethodGet && r.URL.Path == "/interactions":
		_, _ = io.WriteString(w, m.interactions)
	case r.Method == http.MethodPost:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body["path"] = r.URL.Path
		m.posted = append(m.posted, body)
		_, _ = io.WriteString(w, "{}")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newMockServices() *mockServices {
	return &mockServices{
		users: `[{"userId":1,"name":"alice"},{"userId":2,"name":"bob"}]`,
		products: `[
			{"productId":1,"productName":"Kettle","category":"kitchen","price":30.00},
			{"productId":2,"productName":"Mug","category":"kitchen","price":8.5}
		]`,
		interactions: `[
			{"interactionId":1,"userId":1,"productId":1,"interactionType":"view","timestamp":"2024-05-01 12:00:00"},
			{"interactionId":2,"userId":1,"productId":2,"interactionType":"add_to_cart","timestamp":1714564800000},
			{"interactionId":3,"userId":2,"productId":1,"interactionType":"share"}
		]`,
	}
}

func TestRESTDatabase(t *testing.T) {
	ctx := context.Background()
	services := newMockServices()
	server := httptest.NewServer(services)
	defer server.Close()

	database, err := Open(server.URL, "", storage.WithMaxRetries(0))
	assert.NoError(t, err)
	assert.NoError(t, database.Init())
	assert.NoError(t, database.Ping())

	users, err := database.GetUsers(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []User{{UserId: 1}, {UserId: 2}}, users)

	products, err := database.GetProducts(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []Product{
		{ProductId: 1, Name: "Kettle", Category: "kitchen", Price: 30},
		{ProductId: 2, Name: "Mug", Category: "kitchen", Price: 8.5},
	}, products)

	interactions, err := database.GetInteractions(ctx)
	assert.NoError(t, err)
	assert.Len(t, interactions, 3)
	assert.Equal(t, View, interactions[0].InteractionType)
	assert.True(t, interactions[0].Timestamp.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, AddToCart, interactions[1].InteractionType)
	assert.True(t, interactions[1].Timestamp.Equal(time.UnixMilli(1714564800000)))
	assert.True(t, interactions[2].Timestamp.IsZero())

	interactions, err = database.GetUserInteractions(ctx, 2)
	assert.NoError(t, err)
	assert.Len(t, interactions, 1)
	assert.Equal(t, Share, interactions[0].InteractionType)

	err = database.BatchInsertInteractions(ctx, []Interaction{{
		UserId:          2,
		ProductId:       2,
		InteractionType: View,
		Timestamp:       time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}})
	assert.NoError(t, err)
	err = database.BatchInsertProducts(ctx, []Product{{ProductId: 3, Name: "Pan", Category: "kitchen", Price: 20}})
	assert.NoError(t, err)
	err = database.BatchInsertUsers(ctx, []User{{UserId: 3}})
	assert.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"path": "/interactions", "userId": 2.0, "productId": 2.0, "interactionType": "view", "timestamp": "2024-05-02T00:00:00Z"},
		{"path": "/products", "productId": 3.0, "productName": "Pan", "category": "kitchen", "price": 20.0},
		{"path": "/users", "userId": 3.0},
	}, services.posted)

	assert.True(t, errors.Is(database.Purge(), errors.NotSupported))
	assert.NoError(t, database.Close())
}

func TestRESTDatabaseRetry(t *testing.T) {
	ctx := context.Background()
	services := newMockServices()
	server := httptest.NewServer(services)
	defer server.Close()

	// recover from a transient failure
	services.failures.Store(1)
	database, err := Open(server.URL, "", storage.WithMaxRetries(2))
	assert.NoError(t, err)
	products, err := database.GetProducts(ctx)
	assert.NoError(t, err)
	assert.Len(t, products, 2)

	// inserts are sent once
	services.failures.Store(1)
	err = database.BatchInsertUsers(ctx, []User{{UserId: 3}})
	assert.Error(t, err)
	err = database.BatchInsertUsers(ctx, []User{{UserId: 3}})
	assert.NoError(t, err)
	assert.Len(t, services.posted, 1)

	// give up without retries
	services.failures.Store(1)
	database, err = Open(server.URL, "", storage.WithMaxRetries(0))
	assert.NoError(t, err)
	_, err = database.GetProducts(ctx)
	assert.Error(t, err)
}

func TestRESTDatabaseBadPayload(t *testing.T) {
	ctx := context.Background()
	services := newMockServices()
	services.interactions = `[{"interactionId":1,"userId":1,"productId":1,"interactionType":"view","timestamp":"not a time"}]`
	services.products = `{"productId":1}`
	server := httptest.NewServer(services)
	defer server.Close()

	database, err := Open(server.URL, "", storage.WithMaxRetries(0))
	assert.NoError(t, err)
	_, err = database.GetInteractions(ctx)
	assert.Error(t, err)
	_, err = database.GetProducts(ctx)
	assert.Error(t, err)
}
