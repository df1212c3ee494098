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

// Package catalog is the compile-time table/column directory consulted by
// the semantic analyzer and planner. Table lookups are case-insensitive;
// the original-cased name is preserved for display and storage paths.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nanodb/nanodb/types"
)

// Column describes one column of a table.
type Column struct {
	Name string
	Type types.ColumnType
}

// Table describes a table's schema.
type Table struct {
	Name    string
	Columns []Column
}

// ColumnIndex returns the position of the named column (case-insensitive)
// and whether it was found.
func (t Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i, true
		}
	}
	return 0, false
}

// Catalog is the in-memory snapshot of every table's schema, keyed
// case-insensitively.
type Catalog struct {
	tables map[string]Table
}

// New returns an empty Catalog.
func New() *Catalog {
	return &Catalog{tables: make(map[string]Table)}
}

// CreateTable registers a new table. It fails if a table with the same
// name (case-insensitively) already exists.
func (c *Catalog) CreateTable(name string, columns []Column) error {
	key := strings.ToLower(name)
	if _, ok := c.tables[key]; ok {
		return fmt.Errorf("table %q already exists", name)
	}
	c.tables[key] = Table{Name: name, Columns: columns}
	return nil
}

// DropTable removes a table's schema. It fails if the table does not
// exist.
func (c *Catalog) DropTable(name string) error {
	key := strings.ToLower(name)
	if _, ok := c.tables[key]; !ok {
		return fmt.Errorf("table %q does not exist", name)
	}
	delete(c.tables, key)
	return nil
}

// HasTable reports whether name (case-insensitively) names a known table.
func (c *Catalog) HasTable(name string) bool {
	_, ok := c.tables[strings.ToLower(name)]
	return ok
}

// GetTable returns the schema for name and whether it was found.
func (c *Catalog) GetTable(name string) (Table, bool) {
	t, ok := c.tables[strings.ToLower(name)]
	return t, ok
}

// TableNames returns every registered table name in sorted order, for
// deterministic catalog dumps and bootstrap scans.
func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}
