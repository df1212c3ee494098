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
	"errors"

	"github.com/nanodb/nanodb"
)

// ErrBindingsUnsupported is returned when a statement is Exec'd or
// Queried with arguments: nanodb's grammar has no placeholder syntax, so
// there is nothing for a bound argument to fill.
var ErrBindingsUnsupported = errors.New("nanodb: driver does not support bound query arguments")

// Stmt is a prepared statement: just the query text, since nanodb
// compiles a fresh plan on every execution rather than caching one.
type Stmt struct {
	conn  *Conn
	query string
}

// Close does nothing.
func (s *Stmt) Close() error {
	return nil
}

// NumInput reports that this driver accepts no placeholder parameters.
func (s *Stmt) NumInput() int {
	return 0
}

// Exec runs a statement that doesn't return rows, such as an INSERT,
// UPDATE, DELETE, or DDL statement.
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	if len(args) > 0 {
		return nil, ErrBindingsUnsupported
	}
	return s.exec()
}

// Query runs a statement that returns rows, such as a SELECT.
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	if len(args) > 0 {
		return nil, ErrBindingsUnsupported
	}
	return s.queryRows()
}

func (s *Stmt) exec() (driver.Result, error) {
	res, err := s.conn.engine.Exec(s.query)
	if err != nil {
		return nil, err
	}
	if res.Kind == nanodb.ResultRows {
		return nil, errors.New("nanodb: Exec called with a row-returning statement, use Query instead")
	}
	return &Result{count: int64(res.Count)}, nil
}

func (s *Stmt) queryRows() (driver.Rows, error) {
	res, err := s.conn.engine.Exec(s.query)
	if err != nil {
		return nil, err
	}
	return newRows(res.Rows), nil
}
