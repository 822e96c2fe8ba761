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
	"math/rand"
	"testing"

	"github.com/gorse-io/shoprec/config"
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/jaswdr/faker"
	"github.com/stretchr/testify/assert"
)

func randomDataset(fake faker.Faker, numUsers, numProducts, numInteractions int) ([]data.Product, []data.Interaction) {
	categories := []string{"books", "garden", "home", "kitchen", "toys"}
	kinds := []string{string(data.View), string(data.AddToCart), string(data.Share)}
	products := make([]data.Product, numProducts)
	for i := range products {
		products[i] = data.Product{
			ProductId: int64(numProducts - i),
			Name:      fake.Lorem().Word(),
			Category:  fake.RandomStringElement(categories),
			Price:     float64(fake.IntBetween(1, 500)),
		}
	}
	interactions := make([]data.Interaction, numInteractions)
	for i := range interactions {
		interactions[i] = data.Interaction{
			InteractionId:   int64(i + 1),
			UserId:          int64(fake.IntBetween(1, numUsers)),
			ProductId:       int64(fake.IntBetween(1, numProducts)),
			InteractionType: data.InteractionKind(fake.RandomStringElement(kinds)),
		}
	}
	return products, interactions
}

func TestPipelineProperties(t *testing.T) {
	fake := faker.NewWithSeed(rand.NewSource(42))
	products, interactions := randomDataset(fake, 20, 50, 300)
	products = SortProducts(products)

	features, err := EncodeItemFeatures(products, false)
	assert.NoError(t, err)
	similarity := ComputeItemSimilarity(features)
	for i := range similarity.Values {
		assert.InDelta(t, 1.0, similarity.Values[i][i], 1e-12)
		for j := range similarity.Values {
			assert.Equal(t, similarity.Values[i][j], similarity.Values[j][i])
		}
	}

	preferences, err := BuildUserItemMatrix(interactions, features.Items, DefaultWeights(), config.SchemaMismatchReject)
	assert.NoError(t, err)
	for _, row := range preferences.Values {
		var sum float64
		for _, value := range row {
			sum += value
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	for _, userId := range preferences.Users {
		row, _ := preferences.Row(userId)
		recommendations, err := Rank(userId, preferences, features, similarity, products, 10)
		assert.NoError(t, err)
		assert.LessOrEqual(t, len(recommendations), 10)
		again, err := Rank(userId, preferences, features, similarity, products, 10)
		assert.NoError(t, err)
		assert.Equal(t, recommendations, again)
		for i, recommendation := range recommendations {
			// index of a product equals its id minus one
			assert.Zero(t, row[recommendation.ProductId-1])
			if i > 0 {
				prev := recommendations[i-1]
				assert.True(t, prev.Score > recommendation.Score ||
					(prev.Score == recommendation.Score && prev.ProductId < recommendation.ProductId))
			}
		}
	}
}
