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
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/shoprec/base/log"
	"github.com/gorse-io/shoprec/config"
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// UserItemMatrix holds the normalized preference of each user for each product. Users
// and items are in ascending order. Every row sums to 1. Users without interactions have
// no row.
type UserItemMatrix struct {
	Users  []int64
	Items  []int64
	Values [][]float64

	userIndex map[int64]int
}

// Row returns the preference row of a user.
func (m *UserItemMatrix) Row(userId int64) ([]float64, bool) {
	index, ok := m.userIndex[userId]
	if !ok {
		return nil, false
	}
	return m.Values[index], true
}

// BuildUserItemMatrix sums interaction weights for each (user, item) pair over the item
// ids of the catalog and normalizes every row by its sum. An interaction on a product out
// of the catalog fails with ErrSchemaMismatch, or is dropped if the policy is "ignore".
func BuildUserItemMatrix(interactions []data.Interaction, items []int64, weights Weights, schemaMismatch string) (*UserItemMatrix, error) {
	itemIndex := make(map[int64]int, len(items))
	for i, itemId := range items {
		itemIndex[itemId] = i
	}

	// sum weights
	sums := make(map[int64][]float64)
	users := mapset.NewThreadUnsafeSet[int64]()
	for _, interaction := range interactions {
		weight, err := weights.Weight(interaction.InteractionType)
		if err != nil {
			return nil, errors.Annotatef(err, "interaction %d", interaction.InteractionId)
		}
		index, ok := itemIndex[interaction.ProductId]
		if !ok {
			if schemaMismatch == config.SchemaMismatchIgnore {
				log.Logger().Warn("ignore interaction on unknown product",
					zap.Int64("interaction_id", interaction.InteractionId),
					zap.Int64("user_id", interaction.UserId),
					zap.Int64("product_id", interaction.ProductId))
				continue
			}
			return nil, errors.Annotatef(ErrSchemaMismatch, "interaction %d on product %d", interaction.InteractionId, interaction.ProductId)
		}
		row, exist := sums[interaction.UserId]
		if !exist {
			row = make([]float64, len(items))
			sums[interaction.UserId] = row
			users.Add(interaction.UserId)
		}
		row[index] += float64(weight)
	}

	// normalize rows
	m := &UserItemMatrix{
		Users:     users.ToSlice(),
		Items:     items,
		userIndex: make(map[int64]int, users.Cardinality()),
	}
	sort.Slice(m.Users, func(i, j int) bool { return m.Users[i] < m.Users[j] })
	m.Values = make([][]float64, len(m.Users))
	for i, userId := range m.Users {
		row := sums[userId]
		sum := floats.Sum(row)
		if sum <= 0 {
			return nil, errors.Annotatef(ErrZeroPreference, "user %d", userId)
		}
		floats.Scale(1/sum, row)
		m.Values[i] = row
		m.userIndex[userId] = i
	}
	return m, nil
}
