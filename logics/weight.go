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
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/juju/errors"
)

// Weights maps an interaction kind to the strength of the preference it implies.
type Weights map[data.InteractionKind]int

// DefaultWeights rates a share above a view and an add to cart above both.
func DefaultWeights() Weights {
	return Weights{
		data.View:      1,
		data.AddToCart: 3,
		data.Share:     2,
	}
}

// NewWeights creates a weight table from configuration. Only view, add_to_cart and share
// are weighted and every weight must be positive.
func NewWeights(weights map[string]int) (Weights, error) {
	if len(weights) == 0 {
		return DefaultWeights(), nil
	}
	w := make(Weights, len(weights))
	for kind, weight := range weights {
		if _, ok := DefaultWeights()[data.InteractionKind(kind)]; !ok {
			return nil, errors.Annotatef(ErrUnrecognizedInteractionKind, "%q", kind)
		}
		if weight <= 0 {
			return nil, errors.NotValidf("weight %d of interaction kind %q", weight, kind)
		}
		w[data.InteractionKind(kind)] = weight
	}
	return w, nil
}

// Weight returns the strength of an interaction kind.
func (w Weights) Weight(kind data.InteractionKind) (int, error) {
	weight, ok := w[kind]
	if !ok {
		return 0, errors.Annotatef(ErrUnrecognizedInteractionKind, "%q", kind)
	}
	return weight, nil
}
