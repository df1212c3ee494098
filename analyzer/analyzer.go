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

// Package analyzer checks a parsed ast.Statement against a catalog
// snapshot: table/column existence, duplicate names, and type agreement
// between columns and the literals assigned to them.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/nanodb/nanodb/ast"
	"github.com/nanodb/nanodb/catalog"
	"github.com/nanodb/nanodb/types"
)

// Error is a semantic error: a table/column reference or type mismatch
// discovered against the catalog snapshot.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func errf(format string, args ...interface{}) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// scope maps a table alias or name (case-insensitive) to the resolved
// catalog.Table it refers to, together with the order in which tables were
// introduced (primary table first, then joins in clause order). Unqualified
// column references resolve against tables in that same order, so a name
// present in two joined tables deterministically picks the first one
// named in the FROM/JOIN clause rather than depending on map iteration.
type scope struct {
	order   []string // table keys, in resolution order
	byAlias map[string]catalog.Table
}

func newScope() *scope {
	return &scope{byAlias: make(map[string]catalog.Table)}
}

func (s *scope) bind(alias string, tbl catalog.Table) {
	key := strings.ToLower(alias)
	if _, exists := s.byAlias[key]; !exists {
		s.order = append(s.order, key)
	}
	s.byAlias[key] = tbl
}

func (s *scope) lookup(alias string) (catalog.Table, bool) {
	t, ok := s.byAlias[strings.ToLower(alias)]
	return t, ok
}

// resolveColumn checks that ref names a real column, returning the table it
// resolved against and the column's type.
func (s *scope) resolveColumn(ref ast.ColumnRef) (catalog.Table, catalog.Column, error) {
	if ref.Qualifier != "" {
		tbl, ok := s.lookup(ref.Qualifier)
		if !ok {
			return catalog.Table{}, catalog.Column{}, errf("unknown table alias %q", ref.Qualifier)
		}
		idx, ok := tbl.ColumnIndex(ref.Name)
		if !ok {
			return catalog.Table{}, catalog.Column{}, errf("column %q does not exist on %q", ref.Name, tbl.Name)
		}
		return tbl, tbl.Columns[idx], nil
	}
	for _, key := range s.order {
		tbl := s.byAlias[key]
		if idx, ok := tbl.ColumnIndex(ref.Name); ok {
			return tbl, tbl.Columns[idx], nil
		}
	}
	return catalog.Table{}, catalog.Column{}, errf("column %q does not exist", ref.Name)
}

// Analyzer checks statements against a Catalog. It keeps a reference to
// the Catalog rather than a copy, so tables created or dropped through it
// after construction are visible to later checks.
type Analyzer struct {
	catalog *catalog.Catalog
}

// New builds an Analyzer over the given catalog snapshot.
func New(cat *catalog.Catalog) *Analyzer {
	return &Analyzer{catalog: cat}
}

// Check validates stmt, returning a semantic *Error on the first problem
// found.
func (a *Analyzer) Check(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.CreateTable:
		return a.checkCreateTable(s)
	case *ast.DropTable:
		return a.checkDropTable(s)
	case *ast.Insert:
		return a.checkInsert(s)
	case *ast.Select:
		return a.checkSelect(s)
	case *ast.Update:
		return a.checkUpdate(s)
	case *ast.Delete:
		return a.checkDelete(s)
	default:
		return errf("unsupported statement type %T", stmt)
	}
}

func (a *Analyzer) checkCreateTable(stmt *ast.CreateTable) error {
	if a.catalog.HasTable(stmt.Table) {
		return errf("table %q already exists", stmt.Table)
	}
	seen := make(map[string]bool)
	for _, col := range stmt.Columns {
		key := strings.ToLower(col.Name)
		if seen[key] {
			return errf("duplicate column name %q", col.Name)
		}
		seen[key] = true
		switch strings.ToUpper(col.Type) {
		case string(types.TypeInt), string(types.TypeText), string(types.TypeVarchar):
		default:
			return errf("unsupported column type %q", col.Type)
		}
	}
	return nil
}

func (a *Analyzer) checkDropTable(stmt *ast.DropTable) error {
	if !a.catalog.HasTable(stmt.Table) {
		return errf("table %q does not exist", stmt.Table)
	}
	return nil
}

func (a *Analyzer) checkInsert(stmt *ast.Insert) error {
	tbl, ok := a.catalog.GetTable(stmt.Table)
	if !ok {
		return errf("table %q does not exist", stmt.Table)
	}

	var useTypes []types.ColumnType
	var expected int
	if stmt.Columns == nil {
		expected = len(tbl.Columns)
		for _, c := range tbl.Columns {
			useTypes = append(useTypes, c.Type)
		}
	} else {
		expected = len(stmt.Columns)
		for _, name := range stmt.Columns {
			idx, ok := tbl.ColumnIndex(name)
			if !ok {
				return errf("column %q does not exist", name)
			}
			useTypes = append(useTypes, tbl.Columns[idx].Type)
		}
	}

	for rowIdx, row := range stmt.Rows {
		if len(row) != expected {
			return errf("INSERT row %d has %d values, expected %d", rowIdx+1, len(row), expected)
		}
		for colIdx, v := range row {
			t := useTypes[colIdx]
			if err := checkValueType(v, t); err != nil {
				return errf("INSERT row %d column %d: %s", rowIdx+1, colIdx+1, err)
			}
		}
	}
	return nil
}

func checkValueType(v ast.Value, t types.ColumnType) error {
	switch t {
	case types.TypeInt:
		if v.IsString {
			return errf("expected INT, got TEXT")
		}
	case types.TypeText, types.TypeVarchar:
		if !v.IsString {
			return errf("expected %s, got INT", t)
		}
	}
	return nil
}

func (a *Analyzer) checkSelect(stmt *ast.Select) error {
	tbl, ok := a.catalog.GetTable(stmt.Table)
	if !ok {
		return errf("table %q does not exist", stmt.Table)
	}
	sc := newScope()
	sc.bind(stmt.Table, tbl)
	if stmt.Alias != "" {
		sc.bind(stmt.Alias, tbl)
	}

	for _, j := range stmt.Joins {
		jtbl, ok := a.catalog.GetTable(j.Table)
		if !ok {
			return errf("JOIN table %q does not exist", j.Table)
		}
		sc.bind(j.Table, jtbl)
		if j.Alias != "" {
			sc.bind(j.Alias, jtbl)
		}
	}

	if !stmt.Star {
		for _, item := range stmt.Items {
			switch {
			case item.Column != nil:
				if _, _, err := sc.resolveColumn(*item.Column); err != nil {
					return err
				}
			case item.Aggregate != nil && item.Aggregate.Column != nil:
				if _, _, err := sc.resolveColumn(*item.Aggregate.Column); err != nil {
					return err
				}
			}
		}
	}

	for _, j := range stmt.Joins {
		if err := a.checkCondition(j.Condition, sc, false); err != nil {
			return err
		}
	}

	if stmt.Where != nil {
		if err := a.checkCondition(stmt.Where, sc, false); err != nil {
			return err
		}
	}

	if stmt.Group != nil {
		for _, col := range stmt.Group.Columns {
			if _, _, err := sc.resolveColumn(col); err != nil {
				return err
			}
		}
		if stmt.Group.Having != nil {
			if err := a.checkCondition(stmt.Group.Having, sc, true); err != nil {
				return err
			}
		}
	}

	for _, ord := range stmt.OrderBy {
		if _, _, err := sc.resolveColumn(ord.Column); err != nil {
			return err
		}
	}

	return nil
}

// checkCondition validates a predicate tree. allowAggregate permits
// aggregate-call operands, which are only meaningful in a HAVING
// condition evaluated over a group's member rows; WHERE and ON
// conditions run per-row, before grouping, so they pass false.
func (a *Analyzer) checkCondition(cond ast.Condition, sc *scope, allowAggregate bool) error {
	switch c := cond.(type) {
	case *ast.Comparison:
		return a.checkComparison(c, sc, allowAggregate)
	case *ast.And:
		if err := a.checkCondition(c.Left, sc, allowAggregate); err != nil {
			return err
		}
		return a.checkCondition(c.Right, sc, allowAggregate)
	case *ast.Or:
		if err := a.checkCondition(c.Left, sc, allowAggregate); err != nil {
			return err
		}
		return a.checkCondition(c.Right, sc, allowAggregate)
	default:
		return errf("unsupported condition type %T", cond)
	}
}

func (a *Analyzer) checkComparison(cmp *ast.Comparison, sc *scope, allowAggregate bool) error {
	if err := a.checkOperand(cmp.Left, sc, allowAggregate); err != nil {
		return err
	}
	if err := a.checkOperand(cmp.Right, sc, allowAggregate); err != nil {
		return err
	}
	return checkComparisonTypes(cmp.Left, cmp.Right, sc)
}

// checkComparisonTypes enforces that a column compared against a literal
// agrees with the column's declared type, e.g. rejecting `age = 'oops'`
// where age is INT. Column-vs-column and column-vs-aggregate comparisons
// carry no literal to check against, so they pass through unchanged.
func checkComparisonTypes(left, right ast.Operand, sc *scope) error {
	if left.IsColumn && !right.IsColumn && !right.IsAggregate {
		_, col, err := sc.resolveColumn(left.Column)
		if err != nil {
			return err
		}
		if err := checkValueType(right.Literal, col.Type); err != nil {
			return errf("comparison on %s: %s", left.Column.QualifiedName(), err)
		}
		return nil
	}
	if right.IsColumn && !left.IsColumn && !left.IsAggregate {
		_, col, err := sc.resolveColumn(right.Column)
		if err != nil {
			return err
		}
		if err := checkValueType(left.Literal, col.Type); err != nil {
			return errf("comparison on %s: %s", right.Column.QualifiedName(), err)
		}
	}
	return nil
}

func (a *Analyzer) checkOperand(op ast.Operand, sc *scope, allowAggregate bool) error {
	if op.IsAggregate {
		if !allowAggregate {
			return errf("aggregate functions are only allowed in HAVING")
		}
		if op.Aggregate.Column != nil {
			if _, _, err := sc.resolveColumn(*op.Aggregate.Column); err != nil {
				return err
			}
		}
		return nil
	}
	if !op.IsColumn {
		return nil
	}
	_, _, err := sc.resolveColumn(op.Column)
	return err
}

func (a *Analyzer) checkUpdate(stmt *ast.Update) error {
	tbl, ok := a.catalog.GetTable(stmt.Table)
	if !ok {
		return errf("table %q does not exist", stmt.Table)
	}
	for _, asn := range stmt.Assignments {
		idx, ok := tbl.ColumnIndex(asn.Column)
		if !ok {
			return errf("column %q does not exist", asn.Column)
		}
		if err := checkValueType(asn.Value, tbl.Columns[idx].Type); err != nil {
			return errf("SET %s: %s", asn.Column, err)
		}
	}
	if stmt.Where != nil {
		sc := newScope()
		sc.bind(stmt.Table, tbl)
		if err := a.checkCondition(stmt.Where, sc, false); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) checkDelete(stmt *ast.Delete) error {
	tbl, ok := a.catalog.GetTable(stmt.Table)
	if !ok {
		return errf("table %q does not exist", stmt.Table)
	}
	if stmt.Where != nil {
		sc := newScope()
		sc.bind(stmt.Table, tbl)
		if err := a.checkCondition(stmt.Where, sc, false); err != nil {
			return err
		}
	}
	return nil
}
