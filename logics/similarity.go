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

	"gonum.org/v1/gonum/floats"
)

// ItemSimilarityMatrix holds the cosine similarity between each pair of products. Items
// are in the same order as the feature matrix it is computed from.
type ItemSimilarityMatrix struct {
	Items  []int64
	Values [][]float64
}

// ComputeItemSimilarity computes the pairwise cosine similarity of feature vectors. Only
// the upper triangle is computed and it is mirrored to the lower triangle. A zero vector
// has similarity 0 to every item, itself included.
func ComputeItemSimilarity(features *ItemFeatureMatrix) *ItemSimilarityMatrix {
	n := len(features.Items)
	norms := make([]float64, n)
	for i, row := range features.Values {
		norms[i] = floats.Norm(row, 2)
	}
	m := &ItemSimilarityMatrix{
		Items:  features.Items,
		Values: make([][]float64, n),
	}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		if norms[i] == 0 {
			continue
		}
		m.Values[i][i] = 1
		for j := i + 1; j < n; j++ {
			if norms[j] == 0 {
				continue
			}
			similarity := floats.Dot(features.Values[i], features.Values[j]) / (norms[i] * norms[j])
			similarity = math.Max(-1, math.Min(1, similarity))
			m.Values[i][j] = similarity
			m.Values[j][i] = similarity
		}
	}
	return m
}
