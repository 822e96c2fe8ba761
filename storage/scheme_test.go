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

package storage

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestAppendURLParams(t *testing.T) {
	url, err := AppendURLParams("sqlite://shop.db", []lo.Tuple2[string, string]{
		{A: "_pragma", B: "busy_timeout(10000)"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "sqlite://shop.db?_pragma=busy_timeout%2810000%29", url)
}

func TestAppendMySQLParams(t *testing.T) {
	dsn, err := AppendMySQLParams("root:password@tcp(127.0.0.1:3306)/shop?time_zone=%27%2B08%3A00%27", map[string]string{
		"time_zone": "'+00:00'",
		"sql_mode":  "'STRICT_TRANS_TABLES'",
	})
	assert.NoError(t, err)
	assert.Contains(t, dsn, "time_zone=")
	assert.NotContains(t, dsn, "+00:00")
	assert.NotContains(t, dsn, "%2B00%3A00")
	assert.Contains(t, dsn, "sql_mode=")
	_, err = AppendMySQLParams("root:password@tcp(127.0.0.1:3306", nil)
	assert.Error(t, err)
}

func TestTablePrefix(t *testing.T) {
	prefix := TablePrefix("shop_")
	assert.Equal(t, "shop_users", prefix.UsersTable())
	assert.Equal(t, "shop_products", prefix.ProductsTable())
	assert.Equal(t, "shop_interactions", prefix.InteractionsTable())
}
