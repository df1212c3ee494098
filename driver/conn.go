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

package driver

import (
	"database/sql/driver"

	"github.com/nanodb/nanodb"
)

// Conn is a connection to an Engine.
type Conn struct {
	engine *nanodb.Engine
}

// Prepare returns a Stmt for query. nanodb has no placeholder syntax, so
// there is nothing to validate ahead of Exec/Query beyond holding the
// query text.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{conn: c, query: query}, nil
}

// Close does nothing: the Conn's Engine writes each statement's changes to
// disk when the statement completes and keeps no files open between
// statements.
func (c *Conn) Close() error {
	return nil
}

// Begin returns a no-op transaction. nanodb has no transaction support
// per its scope: every statement commits immediately against storage.
func (c *Conn) Begin() (driver.Tx, error) {
	return noopTx{}, nil
}

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }
