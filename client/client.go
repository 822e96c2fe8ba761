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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorse-io/shoprec/logics"
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/juju/errors"
)

// ShoprecClient talks to the RESTful APIs of a shoprec server.
type ShoprecClient struct {
	entryPoint string
	apiKey     string
	httpClient http.Client
}

func NewShoprecClient(entryPoint, apiKey string) *ShoprecClient {
	return &ShoprecClient{
		entryPoint: strings.TrimSuffix(entryPoint, "/"),
		apiKey:     apiKey,
	}
}

func (c *ShoprecClient) Health(ctx context.Context) (*Health, error) {
	var health Health
	err := c.request(ctx, http.MethodGet, "/api/health", nil, &health)
	if err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *ShoprecClient) InsertUsers(ctx context.Context, users []data.User) (*RowAffected, error) {
	var result RowAffected
	if err := c.request(ctx, http.MethodPost, "/api/users", users, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *ShoprecClient) InsertProducts(ctx context.Context, products []data.Product) (*RowAffected, error) {
	var result RowAffected
	if err := c.request(ctx, http.MethodPost, "/api/products", products, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *ShoprecClient) InsertInteractions(ctx context.Context, interactions []data.Interaction) (*RowAffected, error) {
	var result RowAffected
	if err := c.request(ctx, http.MethodPost, "/api/interactions", interactions, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *ShoprecClient) GetRecommend(ctx context.Context, userId int64, n int) ([]logics.Recommendation, error) {
	result := make([]logics.Recommendation, 0)
	err := c.request(ctx, http.MethodGet, fmt.Sprintf("/api/recommend/%d?n=%d", userId, n), nil, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *ShoprecClient) GetUserInteractions(ctx context.Context, userId int64) ([]logics.InteractionDetail, error) {
	result := make([]logics.InteractionDetail, 0)
	err := c.request(ctx, http.MethodGet, "/api/user/"+strconv.FormatInt(userId, 10)+"/interactions", nil, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *ShoprecClient) request(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		content, err := json.Marshal(body)
		if err != nil {
			return errors.Trace(err)
		}
		reader = bytes.NewReader(content)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.entryPoint+path, reader)
	if err != nil {
		return errors.Trace(err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Trace(err)
	}
	if resp.StatusCode != http.StatusOK {
		return ErrorMessage(strings.TrimSpace(string(content)))
	}
	return errors.Trace(json.Unmarshal(content, result))
}
