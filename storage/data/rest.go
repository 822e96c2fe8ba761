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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/shoprec/base/log"
	"github.com/gorse-io/shoprec/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RESTDatabase reads users, products and interactions from the user, product and
// interaction microservices. Their payloads use camelCase field names and are translated
// to the canonical entities here.
type RESTDatabase struct {
	baseURL    string
	client     *http.Client
	maxRetries uint64
}

func NewRESTDatabase(baseURL string, option storage.Options) *RESTDatabase {
	return &RESTDatabase{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		client:     option.HTTPClient,
		maxRetries: option.MaxRetries,
	}
}

type restUser struct {
	UserId int64 `json:"userId"`
}

type restProduct struct {
	ProductId   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Name        string  `json:"name,omitempty"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
}

type restInteraction struct {
	InteractionId   int64           `json:"interactionId,omitempty"`
	UserId          int64           `json:"userId"`
	ProductId       int64           `json:"productId"`
	InteractionType string          `json:"interactionType"`
	Timestamp       json.RawMessage `json:"timestamp,omitempty"`
}

func (p restProduct) toProduct() Product {
	name := p.ProductName
	if name == "" {
		name = p.Name
	}
	return Product{
		ProductId: p.ProductId,
		Name:      name,
		Category:  p.Category,
		Price:     p.Price,
	}
}

func (i restInteraction) toInteraction() (Interaction, error) {
	timestamp, err := parseTimestamp(i.Timestamp)
	if err != nil {
		return Interaction{}, errors.Annotatef(err, "interaction %d", i.InteractionId)
	}
	return Interaction{
		InteractionId:   i.InteractionId,
		UserId:          i.UserId,
		ProductId:       i.ProductId,
		InteractionType: InteractionKind(i.InteractionType),
		Timestamp:       timestamp,
	}, nil
}

// parseTimestamp accepts a string in any common layout or epoch milliseconds. A missing
// timestamp is the zero time.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return time.Time{}, nil
	}
	if strings.HasPrefix(text, "\"") {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, errors.Trace(err)
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		return t, errors.Trace(err)
	}
	millis, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return time.Time{}, errors.Trace(err)
	}
	return time.UnixMilli(millis).UTC(), nil
}

func (d *RESTDatabase) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Trace(err)
		}
	}
	// only reads are retried
	maxTries := uint(1)
	if method == http.MethodGet {
		maxTries = uint(d.maxRetries + 1)
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, backoff.Permanent(errors.Trace(err))
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := d.client.Do(req)
		if err != nil {
			log.Logger().Warn("request to data service failed",
				zap.String("method", method), zap.String("path", path), zap.Error(err))
			return struct{}{}, errors.Trace(err)
		}
		defer resp.Body.Close()
		content, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, errors.Trace(err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return struct{}{}, errors.Errorf("%s %s: %s", method, path, resp.Status)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return struct{}{}, backoff.Permanent(errors.Errorf("%s %s: %s: %s", method, path, resp.Status, string(content)))
		}
		if out != nil {
			if err = json.Unmarshal(content, out); err != nil {
				return struct{}{}, backoff.Permanent(errors.Annotatef(err, "decode %s %s", method, path))
			}
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(maxTries))
	return err
}

func (d *RESTDatabase) Init() error {
	return nil
}

func (d *RESTDatabase) Ping() error {
	return d.do(context.Background(), http.MethodGet, "/users", nil, nil)
}

func (d *RESTDatabase) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *RESTDatabase) Purge() error {
	return errors.NotSupportedf("purge on REST data store")
}

func (d *RESTDatabase) BatchInsertUsers(ctx context.Context, users []User) error {
	for _, user := range users {
		if err := d.do(ctx, http.MethodPost, "/users", restUser{UserId: user.UserId}, nil); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (d *RESTDatabase) BatchInsertProducts(ctx context.Context, products []Product) error {
	for _, product := range products {
		if err := d.do(ctx, http.MethodPost, "/products", restProduct{
			ProductId:   product.ProductId,
			ProductName: product.Name,
			Category:    product.Category,
			Price:       product.Price,
		}, nil); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (d *RESTDatabase) BatchInsertInteractions(ctx context.Context, interactions []Interaction) error {
	for _, interaction := range interactions {
		var timestamp json.RawMessage
		if !interaction.Timestamp.IsZero() {
			timestamp = json.RawMessage(fmt.Sprintf("%q", interaction.Timestamp.UTC().Format(time.RFC3339)))
		}
		if err := d.do(ctx, http.MethodPost, "/interactions", restInteraction{
			InteractionId:   interaction.InteractionId,
			UserId:          interaction.UserId,
			ProductId:       interaction.ProductId,
			InteractionType: string(interaction.InteractionType),
			Timestamp:       timestamp,
		}, nil); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (d *RESTDatabase) GetUsers(ctx context.Context) ([]User, error) {
	var users []restUser
	if err := d.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(users, func(user restUser, _ int) User {
		return User{UserId: user.UserId}
	}), nil
}

func (d *RESTDatabase) GetProducts(ctx context.Context) ([]Product, error) {
	var products []restProduct
	if err := d.do(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(products, func(product restProduct, _ int) Product {
		return product.toProduct()
	}), nil
}

func (d *RESTDatabase) GetInteractions(ctx context.Context) ([]Interaction, error) {
	var payload []restInteraction
	if err := d.do(ctx, http.MethodGet, "/interactions", nil, &payload); err != nil {
		return nil, errors.Trace(err)
	}
	interactions := make([]Interaction, 0, len(payload))
	for _, p := range payload {
		interaction, err := p.toInteraction()
		if err != nil {
			return nil, errors.Trace(err)
		}
		interactions = append(interactions, interaction)
	}
	return interactions, nil
}

// GetUserInteractions filters all interactions since the interaction service has no
// per-user endpoint.
func (d *RESTDatabase) GetUserInteractions(ctx context.Context, userId int64) ([]Interaction, error) {
	interactions, err := d.GetInteractions(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Filter(interactions, func(interaction Interaction, _ int) bool {
		return interaction.UserId == userId
	}), nil
}
