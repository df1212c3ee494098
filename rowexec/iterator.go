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
	"sort"
	"strings"

	"github.com/nanodb/nanodb/ast"
	"github.com/nanodb/nanodb/plan"
	"github.com/nanodb/nanodb/storage"
	"github.com/nanodb/nanodb/types"
)

// TableReader is the read side a query evaluation needs from storage: a
// sequential scan of a named table's live rows.
type TableReader interface {
	Table(name string) (*storage.TableStorage, bool)
}

// result is the intermediate value threaded through query node evaluation.
// rows holds one representative row per group (or one row per row, when
// ungrouped); members parallels rows and holds each group's full member
// set, non-nil only downstream of a GroupBy node. An Aggregate node
// consumes members and collapses the result back to ungrouped (members
// reset to nil), since its output rows are genuine single rows.
type result struct {
	rows    []Row
	members [][]Row
}

func ungrouped(rows []Row) result { return result{rows: rows} }

// evalQuery walks a read-only plan.Node tree (SeqScan/Filter/Join/GroupBy/
// OrderBy/Aggregate/Project) and returns its materialized output rows.
func evalQuery(node plan.Node, tables TableReader) ([]Row, error) {
	r, err := eval(node, tables)
	if err != nil {
		return nil, err
	}
	return r.rows, nil
}

func eval(node plan.Node, tables TableReader) (result, error) {
	switch n := node.(type) {
	case *plan.SeqScan:
		return evalSeqScan(n, tables)
	case *plan.Filter:
		return evalFilter(n, tables)
	case *plan.Join:
		return evalJoin(n, tables)
	case *plan.GroupBy:
		return evalGroupBy(n, tables)
	case *plan.OrderBy:
		return evalOrderBy(n, tables)
	case *plan.Aggregate:
		return evalAggregate(n, tables)
	case *plan.Project:
		return evalProject(n, tables)
	default:
		return result{}, fmt.Errorf("unsupported query plan node %T", node)
	}
}

func evalSeqScan(n *plan.SeqScan, tables TableReader) (result, error) {
	tbl, ok := tables.Table(n.Table)
	if !ok {
		return result{}, fmt.Errorf("table %q does not exist", n.Table)
	}
	raw, err := tbl.SeqScan()
	if err != nil {
		return result{}, fmt.Errorf("scan %q: %w", n.Table, err)
	}
	qualifier := n.Table
	if n.Alias != "" {
		qualifier = n.Alias
	}
	rows := make([]Row, len(raw))
	for i, r := range raw {
		row := make(Row, len(r))
		for k, v := range r {
			row[qualifiedKey(qualifier, k)] = types.FromRaw(v)
		}
		rows[i] = row
	}
	return ungrouped(rows), nil
}

func evalFilter(n *plan.Filter, tables TableReader) (result, error) {
	in, err := eval(n.Input, tables)
	if err != nil {
		return result{}, err
	}
	var outRows []Row
	var outMembers [][]Row
	for i, row := range in.rows {
		ok, err := EvalCondition(n.Predicate, row)
		if err != nil {
			return result{}, err
		}
		if !ok {
			continue
		}
		outRows = append(outRows, row)
		if in.members != nil {
			outMembers = append(outMembers, in.members[i])
		}
	}
	return result{rows: outRows, members: outMembers}, nil
}

// buildNullRow returns a row carrying every key seen across rows, each
// mapped to NULL — the filler used for the unmatched side of an outer
// join. If rows is empty (the joined side scanned no rows at all), the
// filler carries no keys; that side's columns are simply absent from the
// merged row rather than guessed at.
func buildNullRow(rows []Row) Row {
	keys := make(map[string]struct{})
	for _, r := range rows {
		for k := range r {
			keys[k] = struct{}{}
		}
	}
	null := make(Row, len(keys))
	for k := range keys {
		null[k] = types.Null
	}
	return null
}

func evalJoin(n *plan.Join, tables TableReader) (result, error) {
	left, err := eval(n.Left, tables)
	if err != nil {
		return result{}, err
	}
	right, err := eval(n.Right, tables)
	if err != nil {
		return result{}, err
	}

	leftNull := buildNullRow(left.rows)
	rightNull := buildNullRow(right.rows)
	matchedRight := make([]bool, len(right.rows))

	var out []Row
	for _, lr := range left.rows {
		matchedLeft := false
		for ri, rr := range right.rows {
			ok, err := EvalComparison(n.On, merge(lr, rr))
			if err != nil {
				return result{}, err
			}
			if !ok {
				continue
			}
			out = append(out, merge(lr, rr))
			matchedLeft = true
			matchedRight[ri] = true
		}
		if !matchedLeft && (n.Kind == ast.LeftJoin || n.Kind == ast.OuterJoin) {
			out = append(out, merge(lr, rightNull))
		}
	}
	if n.Kind == ast.RightJoin || n.Kind == ast.OuterJoin {
		for ri, rr := range right.rows {
			if !matchedRight[ri] {
				out = append(out, merge(leftNull, rr))
			}
		}
	}
	return ungrouped(out), nil
}

// groupKey renders the group-key column values of row as a single string,
// stable and collision-resistant enough to use as a map key (a control
// character can't occur in a lexed literal or identifier).
func groupKey(row Row, cols []ast.ColumnRef) string {
	var b strings.Builder
	for _, c := range cols {
		v, _ := Lookup(row, c)
		b.WriteString(v.String())
		b.WriteByte('\x1f')
	}
	return b.String()
}

// buildGroupRow narrows a group's representative row to just its declared
// GROUP BY columns, matching the original executor's GroupBy.execute(),
// which builds result_row from only the declared group columns rather than
// carrying every column of an arbitrary member row forward.
func buildGroupRow(rep Row, cols []ast.ColumnRef) Row {
	out := make(Row, len(cols))
	for _, c := range cols {
		key, ok := resolveKey(rep, c)
		if !ok {
			continue
		}
		out[key] = rep[key]
	}
	return out
}

func evalGroupBy(n *plan.GroupBy, tables TableReader) (result, error) {
	in, err := eval(n.Input, tables)
	if err != nil {
		return result{}, err
	}

	var order []string
	byKey := make(map[string][]Row)
	for _, row := range in.rows {
		k := groupKey(row, n.Columns)
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], row)
	}

	var outRows []Row
	var outMembers [][]Row
	for _, k := range order {
		members := byKey[k]
		rep := buildGroupRow(members[0], n.Columns)
		ok, err := EvalHavingCondition(n.Having, rep, members)
		if err != nil {
			return result{}, err
		}
		if !ok {
			continue
		}
		outRows = append(outRows, rep)
		outMembers = append(outMembers, members)
	}
	return result{rows: outRows, members: outMembers}, nil
}

func evalOrderBy(n *plan.OrderBy, tables TableReader) (result, error) {
	in, err := eval(n.Input, tables)
	if err != nil {
		return result{}, err
	}

	idx := make([]int, len(in.rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := in.rows[idx[a]], in.rows[idx[b]]
		for _, key := range n.Keys {
			va, _ := Lookup(ra, key.Column)
			vb, _ := Lookup(rb, key.Column)
			c := types.Compare(va, vb)
			if !key.Ascending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})

	outRows := make([]Row, len(in.rows))
	var outMembers [][]Row
	if in.members != nil {
		outMembers = make([][]Row, len(in.rows))
	}
	for i, j := range idx {
		outRows[i] = in.rows[j]
		if in.members != nil {
			outMembers[i] = in.members[j]
		}
	}
	return result{rows: outRows, members: outMembers}, nil
}

func evalAggregate(n *plan.Aggregate, tables TableReader) (result, error) {
	in, err := eval(n.Input, tables)
	if err != nil {
		return result{}, err
	}

	if in.members != nil {
		outRows := make([]Row, len(in.rows))
		for i, rep := range in.rows {
			out := Row{}
			for k, v := range rep {
				out[k] = v
			}
			for _, call := range n.Calls {
				v, err := computeAggregate(call, in.members[i])
				if err != nil {
					return result{}, err
				}
				out[aggregateOutputKey(call)] = v
			}
			outRows[i] = out
		}
		return ungrouped(outRows), nil
	}

	out := Row{}
	for _, call := range n.Calls {
		v, err := computeAggregate(call, in.rows)
		if err != nil {
			return result{}, err
		}
		out[aggregateOutputKey(call)] = v
	}
	return ungrouped([]Row{out}), nil
}

func evalProject(n *plan.Project, tables TableReader) (result, error) {
	in, err := eval(n.Input, tables)
	if err != nil {
		return result{}, err
	}
	outRows := make([]Row, len(in.rows))
	for i, row := range in.rows {
		out := make(Row, len(n.Items))
		for _, item := range n.Items {
			switch {
			case item.Column != nil:
				v, _ := Lookup(row, *item.Column)
				key := item.Alias
				if key == "" {
					key = item.Column.Name
				}
				out[key] = v
			case item.Aggregate != nil:
				srcKey := aggregateOutputKey(*item.Aggregate)
				key := item.Aggregate.Alias
				if key == "" {
					key = srcKey
				}
				out[key] = row[srcKey]
			}
		}
		outRows[i] = out
	}
	return ungrouped(outRows), nil
}
