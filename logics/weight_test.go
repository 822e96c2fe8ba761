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
	"testing"

	"github.com/gorse-io/shoprec/storage/data"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestWeights(t *testing.T) {
	weights := DefaultWeights()
	weight, err := weights.Weight(data.View)
	assert.NoError(t, err)
	assert.Equal(t, 1, weight)
	weight, err = weights.Weight(data.AddToCart)
	assert.NoError(t, err)
	assert.Equal(t, 3, weight)
	weight, err = weights.Weight(data.Share)
	assert.NoError(t, err)
	assert.Equal(t, 2, weight)

	_, err = weights.Weight("purchase")
	assert.ErrorIs(t, err, ErrUnrecognizedInteractionKind)
	assert.Contains(t, err.Error(), "purchase")
}

func TestNewWeights(t *testing.T) {
	weights, err := NewWeights(nil)
	assert.NoError(t, err)
	assert.Equal(t, DefaultWeights(), weights)

	weights, err = NewWeights(map[string]int{"view": 2, "share": 5})
	assert.NoError(t, err)
	assert.Equal(t, Weights{data.View: 2, data.Share: 5}, weights)
	_, err = weights.Weight(data.AddToCart)
	assert.ErrorIs(t, err, ErrUnrecognizedInteractionKind)

	// kinds are fixed
	_, err = NewWeights(map[string]int{"view": 1, "add_to_cart": 3, "share": 2, "like": 4})
	assert.ErrorIs(t, err, ErrUnrecognizedInteractionKind)
	assert.Contains(t, err.Error(), "like")

	_, err = NewWeights(map[string]int{"view": 0})
	assert.True(t, errors.Is(err, errors.NotValid))
}
