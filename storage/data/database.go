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
	"sort"
	"strings"
	"time"

	"github.com/gorse-io/shoprec/base/log"
	"github.com/gorse-io/shoprec/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"go.uber.org/zap"
)

var ErrNoDatabase = errors.NotAssignedf("database")

// InteractionKind is the type of an interaction between a user and a product.
type InteractionKind string

const (
	View      InteractionKind = "view"
	AddToCart InteractionKind = "add_to_cart"
	Share     InteractionKind = "share"
)

// User stores meta data about user.
type User struct {
	UserId int64 `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
}

// Product stores meta data about product.
type Product struct {
	ProductId int64   `gorm:"column:product_id;primaryKey;autoIncrement:false" json:"product_id"`
	Name      string  `gorm:"column:name;type:varchar(256)" json:"name"`
	Category  string  `gorm:"column:category;type:varchar(256);index" json:"category"`
	Price     float64 `gorm:"column:price" json:"price"`
}

// Interaction stores an event of a user on a product. A user may interact with the same
// product many times.
type Interaction struct {
	InteractionId   int64           `gorm:"column:interaction_id;primaryKey" json:"interaction_id"`
	UserId          int64           `gorm:"column:user_id;index" json:"user_id"`
	ProductId       int64           `gorm:"column:product_id;index" json:"product_id"`
	InteractionType InteractionKind `gorm:"column:interaction_type;type:varchar(32)" json:"interaction_type"`
	Timestamp       time.Time       `gorm:"column:timestamp" json:"timestamp"`
}

// SortInteractions sorts interactions from oldest to latest. Ties keep identifier order.
func SortInteractions(interactions []Interaction) {
	sort.SliceStable(interactions, func(i, j int) bool {
		if interactions[i].Timestamp.Equal(interactions[j].Timestamp) {
			return interactions[i].InteractionId < interactions[j].InteractionId
		}
		return interactions[i].Timestamp.Before(interactions[j].Timestamp)
	})
}

type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	BatchInsertUsers(ctx context.Context, users []User) error
	BatchInsertProducts(ctx context.Context, products []Product) error
	BatchInsertInteractions(ctx context.Context, interactions []Interaction) error
	GetUsers(ctx context.Context) ([]User, error)
	GetProducts(ctx context.Context) ([]Product, error)
	GetInteractions(ctx context.Context) ([]Interaction, error)
	GetUserInteractions(ctx context.Context, userId int64) ([]Interaction, error)
}

// Snapshot is a copy of the data store taken for one recommendation request.
type Snapshot struct {
	Users        []User
	Products     []Product
	Interactions []Interaction
}

// LoadSnapshot reads users, products and interactions from the database.
func LoadSnapshot(ctx context.Context, database Database) (*Snapshot, error) {
	users, err := database.GetUsers(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	products, err := database.GetProducts(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	interactions, err := database.GetInteractions(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Snapshot{
		Users:        users,
		Products:     products,
		Interactions: interactions,
	}, nil
}

// Open a connection to a database.
func Open(path, tablePrefix string, opts ...storage.Option) (Database, error) {
	var err error
	option := storage.NewOptions(opts...)
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"sql_mode":  "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		database := new(SQLDatabase)
		database.driver = MySQL
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.gormDB, err = gorm.Open(mysql.Open(name), storage.NewGORMConfig(tablePrefix)); err != nil {
			return nil, errors.Trace(err)
		}
		if database.client, err = database.gormDB.DB(); err != nil {
			return nil, errors.Trace(err)
		}
		storage.ApplySQLPool(database.client, option)
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.driver = Postgres
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.gormDB, err = gorm.Open(postgres.Open(path), storage.NewGORMConfig(tablePrefix)); err != nil {
			return nil, errors.Trace(err)
		}
		if database.client, err = database.gormDB.DB(); err != nil {
			return nil, errors.Trace(err)
		}
		storage.ApplySQLPool(database.client, option)
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.driver = SQLite
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.gormDB, err = gorm.Open(sqlite.Open(name), storage.NewGORMConfig(tablePrefix)); err != nil {
			return nil, errors.Trace(err)
		}
		if database.client, err = database.gormDB.DB(); err != nil {
			return nil, errors.Trace(err)
		}
		// SQLite serializes writers, a single connection avoids lock errors
		database.client.SetMaxOpenConns(1)
		return database, nil
	} else if strings.HasPrefix(path, storage.HTTPPrefix) || strings.HasPrefix(path, storage.HTTPSPrefix) {
		if tablePrefix != "" {
			log.Logger().Warn("table prefix is ignored by REST data store", zap.String("table_prefix", tablePrefix))
		}
		return NewRESTDatabase(path, option), nil
	}
	return nil, errors.Errorf("Unknown database: %s", log.RedactDBURL(path))
}
