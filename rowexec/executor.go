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

package rowexec

import (
	"fmt"

	"github.com/nanodb/nanodb/ast"
	"github.com/nanodb/nanodb/catalog"
	"github.com/nanodb/nanodb/plan"
	"github.com/nanodb/nanodb/storage"
	"github.com/nanodb/nanodb/types"
)

// ResultKind tags the shape of a statement's outcome: a query's row
// sequence, a DML statement's affected-row count, or a DDL statement's
// bare acknowledgment.
type ResultKind int

const (
	ResultRows ResultKind = iota
	ResultCount
	ResultAck
)

// Result is the one outcome shape every statement kind reduces to.
type Result struct {
	Kind  ResultKind
	Rows  []map[string]interface{}
	Count int
}

// Executor runs a checked, planned statement directly against storage: a
// Select plan drives pull-based evaluation through eval(); every other
// statement kind acts on the catalog and table storage directly, the way
// a DDL/DML statement needs no iterator protocol of its own.
type Executor struct {
	Catalog *catalog.Catalog
	System  *storage.SystemCatalog
	Disk    *storage.DiskManager
	Buffer  *storage.BufferManager
}

// Table implements TableReader: it reports a table as present only if the
// catalog currently knows it, then hands back a fresh TableStorage handle
// over the shared disk/buffer pair.
func (e *Executor) Table(name string) (*storage.TableStorage, bool) {
	if !e.Catalog.HasTable(name) {
		return nil, false
	}
	return e.table(name), true
}

func (e *Executor) table(name string) *storage.TableStorage {
	return storage.NewTableStorage(name, e.Disk, e.Buffer)
}

// Execute runs node to completion and returns its Result.
func (e *Executor) Execute(node plan.Node) (*Result, error) {
	switch n := node.(type) {
	case *plan.CreateTable:
		return e.executeCreateTable(n)
	case *plan.DropTable:
		return e.executeDropTable(n)
	case *plan.Insert:
		return e.executeInsert(n)
	case *plan.Update:
		return e.executeUpdate(n)
	case *plan.Delete:
		return e.executeDelete(n)
	default:
		return e.executeQuery(node)
	}
}

func (e *Executor) executeQuery(node plan.Node) (*Result, error) {
	rows, err := evalQuery(node, e)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		m := make(map[string]interface{}, len(r))
		for k, v := range r {
			m[k] = v.Raw()
		}
		out[i] = m
	}
	return &Result{Kind: ResultRows, Rows: out}, nil
}

func (e *Executor) executeCreateTable(n *plan.CreateTable) (*Result, error) {
	if err := e.Catalog.CreateTable(n.Table, n.Columns); err != nil {
		return nil, err
	}
	meta := make([]storage.ColumnMeta, len(n.Columns))
	for i, c := range n.Columns {
		meta[i] = storage.ColumnMeta{Name: c.Name, Type: string(c.Type)}
	}
	if err := e.System.CreateTable(n.Table, meta); err != nil {
		_ = e.Catalog.DropTable(n.Table)
		return nil, fmt.Errorf("persist schema for %q: %w", n.Table, err)
	}
	return &Result{Kind: ResultAck}, nil
}

func (e *Executor) executeDropTable(n *plan.DropTable) (*Result, error) {
	if err := e.Catalog.DropTable(n.Table); err != nil {
		return nil, err
	}
	if err := e.System.DropTable(n.Table); err != nil {
		return nil, err
	}
	e.Buffer.InvalidateTable(n.Table)
	if err := e.Disk.DeleteTableFile(n.Table); err != nil {
		return nil, err
	}
	return &Result{Kind: ResultAck}, nil
}

func astValueToValue(v ast.Value) types.Value {
	if v.IsString {
		return types.NewText(v.Str)
	}
	return types.NewInt(v.Int)
}

func (e *Executor) executeInsert(n *plan.Insert) (*Result, error) {
	tbl, ok := e.Catalog.GetTable(n.Table)
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", n.Table)
	}
	columns := n.Columns
	if columns == nil {
		columns = make([]string, len(tbl.Columns))
		for i, c := range tbl.Columns {
			columns[i] = c.Name
		}
	}

	ts := e.table(n.Table)
	count := 0
	for _, valueRow := range n.Rows {
		raw := make(map[string]interface{}, len(tbl.Columns))
		for _, c := range tbl.Columns {
			raw[c.Name] = nil
		}
		for i, colName := range columns {
			idx, ok := tbl.ColumnIndex(colName)
			if !ok {
				return nil, fmt.Errorf("column %q does not exist on %q", colName, n.Table)
			}
			col := tbl.Columns[idx]
			coerced, err := types.Coerce(astValueToValue(valueRow[i]), col.Type)
			if err != nil {
				return nil, fmt.Errorf("INSERT into %s.%s: %w", n.Table, col.Name, err)
			}
			raw[col.Name] = coerced.Raw()
		}
		if err := ts.AppendRow(raw); err != nil {
			return nil, err
		}
		count++
	}
	return &Result{Kind: ResultCount, Count: count}, nil
}

// mutationCondition walks a plan.Update/Delete's Input chain (a SeqScan,
// optionally wrapped in one Filter) back to the predicate it was wrapped
// in, nil meaning "every row".
func mutationCondition(n plan.Node) ast.Condition {
	switch v := n.(type) {
	case *plan.Filter:
		return v.Predicate
	default:
		return nil
	}
}

// rowPredicate adapts an ast.Condition, evaluated against a single table's
// rows qualified by qualifier, to the bool-returning predicate shape
// storage.TableStorage expects. A condition that fails to evaluate (which
// a previously-checked statement should never produce) is treated as not
// matching, rather than propagating an error through a signature that has
// no room for one.
func rowPredicate(cond ast.Condition, qualifier string) func(map[string]interface{}) bool {
	if cond == nil {
		return func(map[string]interface{}) bool { return true }
	}
	return func(raw map[string]interface{}) bool {
		row := make(Row, len(raw))
		for k, v := range raw {
			row[qualifiedKey(qualifier, k)] = types.FromRaw(v)
		}
		ok, err := EvalCondition(cond, row)
		if err != nil {
			return false
		}
		return ok
	}
}

func (e *Executor) executeUpdate(n *plan.Update) (*Result, error) {
	table := n.Table
	cond := mutationCondition(n.Input)
	tbl, ok := e.Catalog.GetTable(table)
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", table)
	}

	assignments := make(map[string]interface{}, len(n.Assignments))
	for _, a := range n.Assignments {
		idx, ok := tbl.ColumnIndex(a.Column)
		if !ok {
			return nil, fmt.Errorf("column %q does not exist on %q", a.Column, table)
		}
		col := tbl.Columns[idx]
		coerced, err := types.Coerce(astValueToValue(a.Value), col.Type)
		if err != nil {
			return nil, fmt.Errorf("SET %s: %w", col.Name, err)
		}
		assignments[col.Name] = coerced.Raw()
	}

	ts := e.table(table)
	update := func(raw map[string]interface{}) {
		for k, v := range assignments {
			raw[k] = v
		}
	}
	count, err := ts.UpdateWhere(update, rowPredicate(cond, table))
	if err != nil {
		return nil, err
	}
	return &Result{Kind: ResultCount, Count: count}, nil
}

func (e *Executor) executeDelete(n *plan.Delete) (*Result, error) {
	table := n.Table
	cond := mutationCondition(n.Input)
	if !e.Catalog.HasTable(table) {
		return nil, fmt.Errorf("table %q does not exist", table)
	}
	ts := e.table(table)
	count, err := ts.DeleteWhere(rowPredicate(cond, table))
	if err != nil {
		return nil, err
	}
	return &Result{Kind: ResultCount, Count: count}, nil
}
