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

package storage

import (
	"fmt"
	"sort"
)

// CatalogTableName is the reserved name of the self-describing system
// table that records every user table's schema.
const CatalogTableName = "pg_catalog"

// ColumnMeta is one (table, column) row of the system catalog.
type ColumnMeta struct {
	Name string
	Type string
}

// SystemCatalog is the runtime table directory: schema metadata
// persisted as ordinary rows of the reserved pg_catalog table, so a
// restarted engine recovers its schema by scanning storage rather than
// from separate bookkeeping.
type SystemCatalog struct {
	table *TableStorage
}

// NewSystemCatalog opens (and, on first use, bootstraps) the system
// catalog backed by table storage.
func NewSystemCatalog(disk *DiskManager, buffer *BufferManager) (*SystemCatalog, error) {
	sc := &SystemCatalog{table: NewTableStorage(CatalogTableName, disk, buffer)}
	if err := sc.ensureBootstrapped(); err != nil {
		return nil, err
	}
	return sc, nil
}

// ensureBootstrapped registers pg_catalog's own schema in itself if it
// isn't already present, so the bootstrap is idempotent across restarts.
func (sc *SystemCatalog) ensureBootstrapped() error {
	has, err := sc.HasTable(CatalogTableName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	return sc.registerTable(CatalogTableName, []ColumnMeta{
		{Name: "table_name", Type: "TEXT"},
		{Name: "column_name", Type: "TEXT"},
		{Name: "column_type", Type: "TEXT"},
		{Name: "column_order", Type: "INT"},
	})
}

func (sc *SystemCatalog) registerTable(table string, columns []ColumnMeta) error {
	for i, col := range columns {
		row := map[string]interface{}{
			"table_name":   table,
			"column_name":  col.Name,
			"column_type":  col.Type,
			"column_order": int64(i),
		}
		if err := sc.table.AppendRow(row); err != nil {
			return fmt.Errorf("register %s.%s: %w", table, col.Name, err)
		}
	}
	return nil
}

// CreateTable registers a new table's schema. Fails if the table is
// already registered.
func (sc *SystemCatalog) CreateTable(table string, columns []ColumnMeta) error {
	has, err := sc.HasTable(table)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("table %q already exists", table)
	}
	return sc.registerTable(table, columns)
}

// DropTable tombstones every catalog row for table. Fails if the table is
// not registered.
func (sc *SystemCatalog) DropTable(table string) error {
	has, err := sc.HasTable(table)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("table %q does not exist", table)
	}
	_, err = sc.table.DeleteWhere(func(r map[string]interface{}) bool {
		name, _ := r["table_name"].(string)
		return name == table
	})
	return err
}

// HasTable reports whether table is currently registered.
func (sc *SystemCatalog) HasTable(table string) (bool, error) {
	rows, err := sc.table.SeqScan()
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if name, _ := r["table_name"].(string); name == table {
			return true, nil
		}
	}
	return false, nil
}

// ListTables returns every registered table name except pg_catalog
// itself, sorted.
func (sc *SystemCatalog) ListTables() ([]string, error) {
	rows, err := sc.table.SeqScan()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, r := range rows {
		name, _ := r["table_name"].(string)
		if name != "" && name != CatalogTableName {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// GetTableColumns returns table's columns, in declared order.
func (sc *SystemCatalog) GetTableColumns(table string) ([]ColumnMeta, error) {
	rows, err := sc.table.SeqScan()
	if err != nil {
		return nil, err
	}
	type ordered struct {
		meta  ColumnMeta
		order int64
	}
	var cols []ordered
	for _, r := range rows {
		name, _ := r["table_name"].(string)
		if name != table {
			continue
		}
		colName, _ := r["column_name"].(string)
		colType, _ := r["column_type"].(string)
		order, _ := toInt64(r["column_order"])
		cols = append(cols, ordered{meta: ColumnMeta{Name: colName, Type: colType}, order: order})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].order < cols[j].order })
	out := make([]ColumnMeta, len(cols))
	for i, c := range cols {
		out[i] = c.meta
	}
	return out, nil
}

// toInt64 coerces a decoded JSON number (float64 after a disk round
// trip, or int64 for a row registered in this same process) to int64.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
