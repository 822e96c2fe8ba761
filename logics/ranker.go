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
	"slices"

	"github.com/gorse-io/shoprec/common/heap"
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
)

// Recommendation is a product recommended to a user with its score.
type Recommendation struct {
	data.Product
	Score float64 `json:"score"`
}

// Rank scores every product by the preference row of the user multiplied by the
// similarity matrix, removes products the user has interacted with and returns the top n
// products by descending score. Ties are broken by ascending product id. Products must
// be sorted by id. An unknown user gets no recommendations.
func Rank(userId int64, preferences *UserItemMatrix, features *ItemFeatureMatrix, similarity *ItemSimilarityMatrix,
	products []data.Product, n int) ([]Recommendation, error) {
	itemIds := lo.Map(products, func(product data.Product, _ int) int64 { return product.ProductId })
	if err := checkMatrixShape(itemIds, preferences, features, similarity); err != nil {
		return nil, errors.Trace(err)
	}
	if n <= 0 {
		return []Recommendation{}, nil
	}
	row, ok := preferences.Row(userId)
	if !ok {
		return []Recommendation{}, nil
	}

	scores := make([]float64, len(itemIds))
	for i, preference := range row {
		if preference != 0 {
			floats.AddScaled(scores, preference, similarity.Values[i])
		}
	}
	filter := heap.NewTopKFilter[int, float64](n)
	for i, score := range scores {
		if row[i] > 0 {
			continue
		}
		// indices follow ascending product ids
		filter.Push(i, score)
	}
	elems := filter.PopAll()
	recommendations := make([]Recommendation, len(elems))
	for i, elem := range elems {
		recommendations[i] = Recommendation{
			Product: products[elem.Value],
			Score:   elem.Weight,
		}
	}
	return recommendations, nil
}

// checkMatrixShape verifies that all matrices are indexed by the catalog.
func checkMatrixShape(itemIds []int64, preferences *UserItemMatrix, features *ItemFeatureMatrix, similarity *ItemSimilarityMatrix) error {
	m := len(itemIds)
	if !slices.Equal(itemIds, preferences.Items) {
		return errors.Annotatef(ErrMatrixMismatch, "%d products in catalog but %d items in user-item matrix",
			m, len(preferences.Items))
	}
	for i, row := range preferences.Values {
		if len(row) != m {
			return errors.Annotatef(ErrMatrixMismatch, "row %d of user-item matrix has %d columns, expected %d", i, len(row), m)
		}
	}
	if !slices.Equal(itemIds, features.Items) {
		return errors.Annotatef(ErrMatrixMismatch, "%d products in catalog but %d items in feature matrix",
			m, len(features.Items))
	}
	if !slices.Equal(itemIds, similarity.Items) {
		return errors.Annotatef(ErrMatrixMismatch, "%d products in catalog but %d items in similarity matrix",
			m, len(similarity.Items))
	}
	if len(similarity.Values) != m {
		return errors.Annotatef(ErrMatrixMismatch, "similarity matrix has %d rows, expected %d", len(similarity.Values), m)
	}
	for i, row := range similarity.Values {
		if len(row) != m {
			return errors.Annotatef(ErrMatrixMismatch, "row %d of similarity matrix has %d columns, expected %d", i, len(row), m)
		}
	}
	return nil
}
