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
	"context"
	"database/sql"

	"github.com/gorse-io/shoprec/storage"
	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLDatabase stores users, products and interactions in a relational database.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Init tables and indices.
func (d *SQLDatabase) Init() error {
	db := d.gormDB
	if d.driver == MySQL {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	if err := db.AutoMigrate(&User{}, &Product{}, &Interaction{}); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

// Close the connection.
func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

// Purge deletes all rows. Used by tests.
func (d *SQLDatabase) Purge() error {
	tables := []string{d.InteractionsTable(), d.ProductsTable(), d.UsersTable()}
	for _, table := range tables {
		if err := d.gormDB.Exec("DELETE FROM " + table).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertUsers inserts users. Existing users are kept.
func (d *SQLDatabase) BatchInsertUsers(ctx context.Context, users []User) error {
	if len(users) == 0 {
		return nil
	}
	err := d.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&users).Error
	return errors.Trace(err)
}

// BatchInsertProducts inserts products. Existing products are overwritten.
func (d *SQLDatabase) BatchInsertProducts(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	err := d.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "category", "price"}),
		}).
		Create(&products).Error
	return errors.Trace(err)
}

// BatchInsertInteractions appends interactions. Interactions without an identifier get one
// assigned by the database.
func (d *SQLDatabase) BatchInsertInteractions(ctx context.Context, interactions []Interaction) error {
	if len(interactions) == 0 {
		return nil
	}
	err := d.gormDB.WithContext(ctx).Create(&interactions).Error
	return errors.Trace(err)
}

func (d *SQLDatabase) GetUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := d.gormDB.WithContext(ctx).Order("user_id").Find(&users).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return users, nil
}

func (d *SQLDatabase) GetProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := d.gormDB.WithContext(ctx).Order("product_id").Find(&products).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return products, nil
}

func (d *SQLDatabase) GetInteractions(ctx context.Context) ([]Interaction, error) {
	var interactions []Interaction
	if err := d.gormDB.WithContext(ctx).Order("interaction_id").Find(&interactions).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return interactions, nil
}

func (d *SQLDatabase) GetUserInteractions(ctx context.Context, userId int64) ([]Interaction, error) {
	var interactions []Interaction
	if err := d.gormDB.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("interaction_id").
		Find(&interactions).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return interactions, nil
}
