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

// Package plan builds a logical plan tree from a checked ast.Statement.
//
// WHERE/ON/HAVING predicates are kept as the original ast.Condition tree
// rather than flattened into a list of comparisons: a flattening pass
// collapses AND and OR identically, which silently turns `a AND b OR c`
// into the conjunction `a, b, c` and discards the statement's actual
// semantics. Pushdown below a Join only ever splits on AND, and only
// pushes a conjunct that references exactly one side's table(s); any
// conjunct touching both sides, or any condition containing an OR, stays
// above the join as a single Filter over the joined row.
package plan

import (
	"fmt"
	"strings"

	"github.com/nanodb/nanodb/ast"
	"github.com/nanodb/nanodb/catalog"
	"github.com/nanodb/nanodb/types"
)

// Node is one logical plan operator.
type Node interface {
	planNode()
}

// CreateTable materializes a new table schema.
type CreateTable struct {
	Table   string
	Columns []catalog.Column
}

func (*CreateTable) planNode() {}

// DropTable removes a table and its data.
type DropTable struct {
	Table string
}

func (*DropTable) planNode() {}

// Insert appends rows to a table.
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]ast.Value
}

func (*Insert) planNode() {}

// SeqScan reads every row of a table in storage order.
type SeqScan struct {
	Table string
	Alias string
}

func (*SeqScan) planNode() {}

// Filter yields only the input rows matching Predicate.
type Filter struct {
	Input     Node
	Predicate ast.Condition
}

func (*Filter) planNode() {}

// Join combines Left and Right rows matching On, according to Kind.
type Join struct {
	Left, Right Node
	Kind        ast.JoinKind
	On          *ast.Comparison
}

func (*Join) planNode() {}

// GroupBy partitions input rows by Columns; Having filters the groups.
type GroupBy struct {
	Input   Node
	Columns []ast.ColumnRef
	Having  ast.Condition
}

func (*GroupBy) planNode() {}

// OrderBy sorts input rows by Keys, in order, first key major.
type OrderBy struct {
	Input Node
	Keys  []ast.OrderKey
}

func (*OrderBy) planNode() {}

// Aggregate computes aggregate calls over input rows (the whole input as
// one group, unless it sits above a GroupBy, in which case it runs
// per-group).
type Aggregate struct {
	Input Node
	Calls []ast.AggregateCall
}

func (*Aggregate) planNode() {}

// Project narrows input rows to the named columns/aliases.
type Project struct {
	Input Node
	Items []ast.SelectItem
}

func (*Project) planNode() {}

// Update applies Assignments to every row Input yields.
type Update struct {
	Input       Node
	Table       string
	Assignments []ast.Assignment
}

func (*Update) planNode() {}

// Delete removes every row Input yields.
type Delete struct {
	Input Node
	Table string
}

func (*Delete) planNode() {}

// Planner turns a checked ast.Statement into a Node tree, consulting a
// catalog snapshot to decide which WHERE conjuncts can be pushed below a
// Join.
type Planner struct {
	catalog *catalog.Catalog
}

// New builds a Planner over the given catalog snapshot.
func New(cat *catalog.Catalog) *Planner {
	return &Planner{catalog: cat}
}

// Build produces the logical plan for stmt.
func (p *Planner) Build(stmt ast.Statement) (Node, error) {
	switch s := stmt.(type) {
	case *ast.CreateTable:
		return p.buildCreateTable(s), nil
	case *ast.DropTable:
		return &DropTable{Table: s.Table}, nil
	case *ast.Insert:
		return &Insert{Table: s.Table, Columns: s.Columns, Rows: s.Rows}, nil
	case *ast.Select:
		return p.buildSelect(s)
	case *ast.Update:
		return p.buildUpdate(s), nil
	case *ast.Delete:
		return p.buildDelete(s), nil
	default:
		return nil, fmt.Errorf("unsupported statement type %T", stmt)
	}
}

func (p *Planner) buildCreateTable(s *ast.CreateTable) Node {
	cols := make([]catalog.Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = catalog.Column{Name: c.Name, Type: columnType(c.Type)}
	}
	return &CreateTable{Table: s.Table, Columns: cols}
}

// tableKeys maps an alias or bare table name appearing in a FROM/JOIN
// clause to the canonical table name it denotes, used to decide which
// side of a join a conjunct belongs to.
type tableKeys struct {
	aliasToTable map[string]string // lower(alias) -> canonical table name
}

func newTableKeys() *tableKeys { return &tableKeys{aliasToTable: make(map[string]string)} }

func (tk *tableKeys) bind(alias, table string) {
	if alias != "" {
		tk.aliasToTable[strings.ToLower(alias)] = table
	}
	tk.aliasToTable[strings.ToLower(table)] = table
}

// tableOf resolves a column reference's owning table key: its qualifier
// if present, or "" when unqualified (meaning: could belong to any table
// still in scope, so it can't be safely pushed past a join boundary).
func (tk *tableKeys) tableOf(ref ast.ColumnRef) string {
	if ref.Qualifier == "" {
		return ""
	}
	if t, ok := tk.aliasToTable[strings.ToLower(ref.Qualifier)]; ok {
		return t
	}
	return strings.ToLower(ref.Qualifier)
}

func (p *Planner) buildSelect(s *ast.Select) (Node, error) {
	tk := newTableKeys()
	tk.bind(s.Alias, s.Table)
	for _, j := range s.Joins {
		tk.bind(j.Alias, j.Table)
	}

	var conjuncts []ast.Condition
	if s.Where != nil {
		conjuncts = flattenConjuncts(s.Where)
	}

	primaryKey := strings.ToLower(s.Table)
	if s.Alias != "" {
		primaryKey = strings.ToLower(s.Alias)
	}

	var primaryPushed []ast.Condition
	var remaining []ast.Condition
	for _, c := range conjuncts {
		if refersOnlyToTable(c, tk, primaryKey, s.Table) {
			primaryPushed = append(primaryPushed, c)
		} else {
			remaining = append(remaining, c)
		}
	}

	node := Node(&SeqScan{Table: s.Table, Alias: s.Alias})
	for _, c := range primaryPushed {
		node = &Filter{Input: node, Predicate: c}
	}

	for _, j := range s.Joins {
		joinTableKey := strings.ToLower(j.Table)
		if j.Alias != "" {
			joinTableKey = strings.ToLower(j.Alias)
		}
		rightNode := Node(&SeqScan{Table: j.Table, Alias: j.Alias})

		var pushed []ast.Condition
		var stillRemaining []ast.Condition
		for _, c := range remaining {
			if refersOnlyToTable(c, tk, joinTableKey, j.Table) {
				pushed = append(pushed, c)
			} else {
				stillRemaining = append(stillRemaining, c)
			}
		}
		remaining = stillRemaining

		for _, c := range pushed {
			rightNode = &Filter{Input: rightNode, Predicate: c}
		}

		node = &Join{Left: node, Right: rightNode, Kind: j.Kind, On: j.Condition}
	}

	for _, c := range remaining {
		node = &Filter{Input: node, Predicate: c}
	}

	if s.Group != nil {
		node = &GroupBy{Input: node, Columns: s.Group.Columns, Having: s.Group.Having}
	}

	if len(s.OrderBy) > 0 {
		node = &OrderBy{Input: node, Keys: s.OrderBy}
	}

	if !s.Star {
		var aggregates []ast.AggregateCall
		var plainItems []ast.SelectItem
		for _, item := range s.Items {
			if item.Aggregate != nil {
				aggregates = append(aggregates, *item.Aggregate)
			} else {
				plainItems = append(plainItems, item)
			}
		}
		if len(aggregates) > 0 {
			node = &Aggregate{Input: node, Calls: aggregates}
		}
		if len(plainItems) > 0 || len(aggregates) == 0 {
			node = &Project{Input: node, Items: s.Items}
		}
	}

	return node, nil
}

// flattenConjuncts splits a Condition on top-level ANDs only. A condition
// containing an OR anywhere is kept whole as a single conjunct, since OR
// cannot be pushed piecewise without changing its meaning.
func flattenConjuncts(cond ast.Condition) []ast.Condition {
	and, ok := cond.(*ast.And)
	if !ok {
		return []ast.Condition{cond}
	}
	return append(flattenConjuncts(and.Left), flattenConjuncts(and.Right)...)
}

// refersOnlyToTable reports whether every qualified column reference in
// cond names tableKey, and no reference is unqualified (which could mean
// any table still in scope). A condition containing an OR is never
// eligible for pushdown below a join in this planner: reports false
// unconditionally for Or nodes.
func refersOnlyToTable(cond ast.Condition, tk *tableKeys, tableKey, tableName string) bool {
	switch c := cond.(type) {
	case *ast.Comparison:
		return operandRefersOnlyToTable(c.Left, tk, tableKey, tableName) &&
			operandRefersOnlyToTable(c.Right, tk, tableKey, tableName)
	case *ast.And:
		return refersOnlyToTable(c.Left, tk, tableKey, tableName) && refersOnlyToTable(c.Right, tk, tableKey, tableName)
	default:
		return false
	}
}

func operandRefersOnlyToTable(op ast.Operand, tk *tableKeys, tableKey, tableName string) bool {
	if !op.IsColumn {
		return true
	}
	t := tk.tableOf(op.Column)
	if t == "" {
		return false
	}
	return t == tableKey || strings.EqualFold(t, tableName)
}

func (p *Planner) buildUpdate(s *ast.Update) Node {
	node := Node(&SeqScan{Table: s.Table})
	if s.Where != nil {
		node = &Filter{Input: node, Predicate: s.Where}
	}
	return &Update{Input: node, Table: s.Table, Assignments: s.Assignments}
}

func (p *Planner) buildDelete(s *ast.Delete) Node {
	node := Node(&SeqScan{Table: s.Table})
	if s.Where != nil {
		node = &Filter{Input: node, Predicate: s.Where}
	}
	return &Delete{Input: node, Table: s.Table}
}

func columnType(name string) types.ColumnType {
	return types.ColumnType(strings.ToUpper(name))
}
