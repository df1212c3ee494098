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
	"io"
	"sort"
)

// Rows is an iterator over a query's result rows. The executor hands
// back each row as a column-name map, which carries no column order of
// its own, so Rows derives one by sorting the names seen on the first
// row; every later row is read out in that same order.
type Rows struct {
	cols []string
	rows []map[string]interface{}
	pos  int
}

func newRows(rows []map[string]interface{}) *Rows {
	var cols []string
	if len(rows) > 0 {
		cols = make([]string, 0, len(rows[0]))
		for name := range rows[0] {
			cols = append(cols, name)
		}
		sort.Strings(cols)
	}
	return &Rows{cols: cols, rows: rows}
}

// Columns returns the result's column names.
func (r *Rows) Columns() []string {
	return r.cols
}

// Close does nothing: the row slice needs no teardown.
func (r *Rows) Close() error {
	return nil
}

// Next populates dest with the next row's values, in Columns() order.
func (r *Rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	for i, name := range r.cols {
		dest[i] = row[name]
	}
	return nil
}
