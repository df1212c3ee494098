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

package nanodb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanodb/nanodb/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(config.Default(t.TempDir()))
	require.NoError(t, err)
	return e
}

func TestEngineCreateInsertSelect(t *testing.T) {
	require := require.New(t)
	e := newTestEngine(t)

	ack, err := e.Exec("CREATE TABLE student (id INT, name TEXT, age INT)")
	require.NoError(err)
	require.Equal(ResultAck, ack.Kind)

	ins, err := e.Exec("INSERT INTO student VALUES (1, 'Ada', 30), (2, 'Bo', 25)")
	require.NoError(err)
	require.Equal(2, ins.Count)

	sel, err := e.Exec("SELECT name FROM student WHERE age > 26")
	require.NoError(err)
	require.Len(sel.Rows, 1)
	require.Equal("Ada", sel.Rows[0]["name"])
}

func TestEngineRejectsUnknownTable(t *testing.T) {
	require := require.New(t)
	e := newTestEngine(t)

	_, err := e.Exec("SELECT * FROM missing")
	require.Error(err)
}

func TestEngineRejectsTypeMismatch(t *testing.T) {
	require := require.New(t)
	e := newTestEngine(t)

	_, err := e.Exec("CREATE TABLE t (id INT)")
	require.NoError(err)

	_, err = e.Exec("INSERT INTO t VALUES ('not an int')")
	require.Error(err)
}

func TestEngineExecManyRunsEachStatementInOrder(t *testing.T) {
	require := require.New(t)
	e := newTestEngine(t)

	results, err := e.ExecMany(`
		CREATE TABLE t (id INT);
		INSERT INTO t VALUES (1), (2), (3);
		SELECT id FROM t ORDER BY id DESC;
	`)
	require.NoError(err)
	require.Len(results, 3)
	last := results[2]
	require.Len(last.Rows, 3)
	require.Equal(int64(3), last.Rows[0]["id"])
}

func TestEngineReopenRecoversSchemaAndData(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	e1, err := New(config.Default(dir))
	require.NoError(err)
	_, err = e1.Exec("CREATE TABLE t (id INT, name TEXT)")
	require.NoError(err)
	_, err = e1.Exec("INSERT INTO t VALUES (1, 'Ada')")
	require.NoError(err)

	e2, err := New(config.Default(dir))
	require.NoError(err)
	sel, err := e2.Exec("SELECT id, name FROM t")
	require.NoError(err)
	require.Len(sel.Rows, 1)
	require.Equal("Ada", sel.Rows[0]["name"])
}

func TestEngineUpdateDeleteDropRoundTrip(t *testing.T) {
	require := require.New(t)
	e := newTestEngine(t)

	_, err := e.Exec("CREATE TABLE t (id INT, age INT)")
	require.NoError(err)
	_, err = e.Exec("INSERT INTO t VALUES (1, 10), (2, 20)")
	require.NoError(err)

	upd, err := e.Exec("UPDATE t SET age = 99 WHERE id = 1")
	require.NoError(err)
	require.Equal(1, upd.Count)

	del, err := e.Exec("DELETE FROM t WHERE id = 2")
	require.NoError(err)
	require.Equal(1, del.Count)

	drop, err := e.Exec("DROP TABLE t")
	require.NoError(err)
	require.Equal(ResultAck, drop.Kind)

	_, err = e.Exec("SELECT * FROM t")
	require.Error(err)
}
