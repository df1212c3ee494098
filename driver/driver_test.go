// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driver_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/nanodb/nanodb/driver"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("nanodb", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDriverExecAndQuery(t *testing.T) {
	require := require.New(t)
	db := openTestDB(t)

	_, err := db.Exec("CREATE TABLE student (id INT, name TEXT)")
	require.NoError(err)

	res, err := db.Exec("INSERT INTO student VALUES (1, 'Ada'), (2, 'Bo')")
	require.NoError(err)
	n, err := res.RowsAffected()
	require.NoError(err)
	require.EqualValues(2, n)

	rows, err := db.Query("SELECT id, name FROM student ORDER BY id")
	require.NoError(err)
	defer rows.Close()

	var count int
	for rows.Next() {
		var id int64
		var name string
		require.NoError(rows.Scan(&id, &name))
		count++
		if count == 1 {
			require.Equal(int64(1), id)
			require.Equal("Ada", name)
		}
	}
	require.NoError(rows.Err())
	require.Equal(2, count)
}

func TestDriverUpdateAndDelete(t *testing.T) {
	require := require.New(t)
	db := openTestDB(t)

	_, err := db.Exec("CREATE TABLE t (id INT, age INT)")
	require.NoError(err)
	_, err = db.Exec("INSERT INTO t VALUES (1, 10), (2, 20)")
	require.NoError(err)

	res, err := db.Exec("UPDATE t SET age = 99 WHERE id = 1")
	require.NoError(err)
	n, err := res.RowsAffected()
	require.NoError(err)
	require.EqualValues(1, n)

	res, err = db.Exec("DELETE FROM t WHERE id = 2")
	require.NoError(err)
	n, err = res.RowsAffected()
	require.NoError(err)
	require.EqualValues(1, n)
}

func TestDriverRejectsBoundArguments(t *testing.T) {
	require := require.New(t)
	db := openTestDB(t)

	_, err := db.Exec("CREATE TABLE t (id INT)")
	require.NoError(err)

	_, err = db.Exec("INSERT INTO t VALUES (1)", 1)
	require.Error(err)
}
