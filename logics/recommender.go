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

package logics

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorse-io/shoprec/base/log"
	"github.com/gorse-io/shoprec/config"
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const itemModelCapacity = 16

// InteractionDetail is an interaction joined with the product it refers to. Product
// fields are empty if the product is not in the catalog.
type InteractionDetail struct {
	data.Interaction
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// itemModel is derived from the catalog only and is shared by requests on the same
// catalog. It must not be modified.
type itemModel struct {
	features   *ItemFeatureMatrix
	similarity *ItemSimilarityMatrix
}

// Recommender recommends products from a fresh snapshot of the data store on every
// request. It is safe for concurrent use.
type Recommender struct {
	config   config.RecommendConfig
	weights  Weights
	database data.Database
	cache    *ttlcache.Cache[uint64, *itemModel]
}

func NewRecommender(cfg config.RecommendConfig, database data.Database) (*Recommender, error) {
	weights, err := NewWeights(cfg.Weights)
	if err != nil {
		return nil, errors.Trace(err)
	}
	r := &Recommender{
		config:   cfg,
		weights:  weights,
		database: database,
	}
	if cfg.CacheTTL > 0 {
		r.cache = ttlcache.New[uint64, *itemModel](
			ttlcache.WithTTL[uint64, *itemModel](cfg.CacheTTL),
			ttlcache.WithCapacity[uint64, *itemModel](itemModelCapacity),
		)
	}
	return r, nil
}

// Recommend returns at most n products the user has not interacted with, in descending
// order of scores.
func (r *Recommender) Recommend(ctx context.Context, userId int64, n int) ([]Recommendation, error) {
	start := time.Now()
	snapshot, err := data.LoadSnapshot(ctx, r.database)
	if err != nil {
		return nil, errors.Trace(err)
	}
	products := SortProducts(snapshot.Products)
	model, err := r.loadItemModel(products)
	if err != nil {
		return nil, errors.Trace(err)
	}
	preferences, err := BuildUserItemMatrix(snapshot.Interactions, model.features.Items, r.weights, r.config.SchemaMismatch)
	if err != nil {
		return nil, errors.Trace(err)
	}
	recommendations, err := Rank(userId, preferences, model.features, model.similarity, products, n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Debug("complete recommendation",
		zap.Int64("user_id", userId),
		zap.Int("n", n),
		zap.Int("n_products", len(products)),
		zap.Int("n_interactions", len(snapshot.Interactions)),
		zap.Int("n_recommendations", len(recommendations)),
		zap.Duration("used_time", time.Since(start)))
	return recommendations, nil
}

// PreviousInteractions returns interactions of the user from oldest to latest, joined
// with product metadata. An unknown user has no interactions.
func (r *Recommender) PreviousInteractions(ctx context.Context, userId int64) ([]InteractionDetail, error) {
	interactions, err := r.database.GetUserInteractions(ctx, userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	products, err := r.database.GetProducts(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	catalog := lo.SliceToMap(products, func(product data.Product) (int64, data.Product) {
		return product.ProductId, product
	})
	data.SortInteractions(interactions)
	details := make([]InteractionDetail, 0, len(interactions))
	for _, interaction := range interactions {
		detail := InteractionDetail{Interaction: interaction}
		if product, ok := catalog[interaction.ProductId]; ok {
			detail.Name = product.Name
			detail.Category = product.Category
			detail.Price = product.Price
		}
		details = append(details, detail)
	}
	return details, nil
}

// Close releases the cached item models.
func (r *Recommender) Close() {
	if r.cache != nil {
		r.cache.DeleteAll()
	}
}

func (r *Recommender) loadItemModel(products []data.Product) (*itemModel, error) {
	if r.cache == nil {
		return r.fitItemModel(products)
	}
	key := Fingerprint(products)
	if item := r.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	model, err := r.fitItemModel(products)
	if err != nil {
		return nil, errors.Trace(err)
	}
	r.cache.DeleteExpired()
	r.cache.Set(key, model, ttlcache.DefaultTTL)
	return model, nil
}

func (r *Recommender) fitItemModel(products []data.Product) (*itemModel, error) {
	features, err := EncodeItemFeatures(products, r.config.StrictFeatureRange)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &itemModel{
		features:   features,
		similarity: ComputeItemSimilarity(features),
	}, nil
}

// Fingerprint hashes the fields of products that features are encoded from. Products
// must be sorted by id.
func Fingerprint(products []data.Product) uint64 {
	digest := xxhash.New()
	buf := make([]byte, 0, 16)
	for _, product := range products {
		buf = binary.LittleEndian.AppendUint64(buf[:0], uint64(product.ProductId))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(product.Price))
		_, _ = digest.Write(buf)
		_, _ = digest.WriteString(product.Category)
		_, _ = digest.Write([]byte{0})
	}
	return digest.Sum64()
}
