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

import "context"

// NoDatabase means that no database used.
type NoDatabase struct{}

func (NoDatabase) Init() error {
	return ErrNoDatabase
}

func (NoDatabase) Ping() error {
	return ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Purge() error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertUsers(_ context.Context, _ []User) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertProducts(_ context.Context, _ []Product) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertInteractions(_ context.Context, _ []Interaction) error {
	return ErrNoDatabase
}

func (NoDatabase) GetUsers(_ context.Context) ([]User, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetProducts(_ context.Context) ([]Product, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetInteractions(_ context.Context) ([]Interaction, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetUserInteractions(_ context.Context, _ int64) ([]Interaction, error) {
	return nil, ErrNoDatabase
}
