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
	"math"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/shoprec/base/log"
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ItemFeatureMatrix holds the feature vector of each product: a one-hot encoding of the
// category followed by the min-max normalized price. Items and categories are in
// ascending order.
type ItemFeatureMatrix struct {
	Items      []int64
	Categories []string
	Values     [][]float64
}

// Dim returns the length of a feature vector.
func (m *ItemFeatureMatrix) Dim() int {
	return len(m.Categories) + 1
}

// SortProducts returns a copy of products in ascending order of ids.
func SortProducts(products []data.Product) []data.Product {
	sorted := make([]data.Product, len(products))
	copy(sorted, products)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductId < sorted[j].ProductId
	})
	return sorted
}

// EncodeItemFeatures encodes the catalog. If every product has the same price, the price
// feature is 0 for all products, or ErrDegenerateFeatureRange is returned in strict mode.
func EncodeItemFeatures(products []data.Product, strict bool) (*ItemFeatureMatrix, error) {
	products = SortProducts(products)
	categories := mapset.NewThreadUnsafeSet[string]()
	minPrice, maxPrice := math.Inf(1), math.Inf(-1)
	for i, product := range products {
		if i > 0 && products[i-1].ProductId == product.ProductId {
			return nil, errors.Annotatef(ErrInvalidProduct, "duplicate product %d", product.ProductId)
		}
		if product.Price < 0 || math.IsNaN(product.Price) || math.IsInf(product.Price, 0) {
			return nil, errors.Annotatef(ErrInvalidProduct, "product %d has price %v", product.ProductId, product.Price)
		}
		categories.Add(product.Category)
		minPrice = math.Min(minPrice, product.Price)
		maxPrice = math.Max(maxPrice, product.Price)
	}

	m := &ItemFeatureMatrix{
		Items:      lo.Map(products, func(product data.Product, _ int) int64 { return product.ProductId }),
		Categories: categories.ToSlice(),
		Values:     make([][]float64, len(products)),
	}
	sort.Strings(m.Categories)
	categoryIndex := make(map[string]int, len(m.Categories))
	for i, category := range m.Categories {
		categoryIndex[category] = i
	}

	degenerate := len(products) > 0 && maxPrice == minPrice
	if degenerate {
		if strict {
			return nil, errors.Annotatef(ErrDegenerateFeatureRange, "all %d products have price %v", len(products), minPrice)
		}
		log.Logger().Warn("all products have the same price, price feature is set to 0",
			zap.Int("n_products", len(products)), zap.Float64("price", minPrice))
	}
	for i, product := range products {
		row := make([]float64, m.Dim())
		row[categoryIndex[product.Category]] = 1
		if !degenerate {
			row[len(m.Categories)] = (product.Price - minPrice) / (maxPrice - minPrice)
		}
		m.Values[i] = row
	}
	return m, nil
}
