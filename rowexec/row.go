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

// Package rowexec is the pull-based operator tree that walks a plan.Node
// and produces result rows, plus the mutation operators (CreateTable,
// DropTable, Insert, Update, Delete) that act directly on storage.
package rowexec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nanodb/nanodb/ast"
	"github.com/nanodb/nanodb/types"
)

// Row is one in-flight result row. Every key is qualified as
// "table_or_alias.column", stamped once at the scan that produced it, so
// joins never need to rename keys and unqualified references resolve by
// suffix match.
type Row map[string]types.Value

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// merge returns a new Row containing every key of r and other. Caller
// guarantees the two sides were qualified by distinct table/alias keys,
// so no collision is expected; a collision silently prefers other.
func merge(r, other Row) Row {
	out := make(Row, len(r)+len(other))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func qualifiedKey(qualifier, column string) string {
	return qualifier + "." + column
}

// resolveKey finds the actual row key that ref names: an exact qualified
// match, or the lexicographically first key whose column part matches an
// unqualified name (picked for determinism when more than one table
// carries a column of that name).
func resolveKey(row Row, ref ast.ColumnRef) (string, bool) {
	if ref.Qualifier != "" {
		key := qualifiedKey(ref.Qualifier, ref.Name)
		if _, ok := row[key]; ok {
			return key, true
		}
		return "", false
	}
	var matchKeys []string
	for k := range row {
		if columnPart(k) == ref.Name {
			matchKeys = append(matchKeys, k)
		}
	}
	if len(matchKeys) == 0 {
		return "", false
	}
	sort.Strings(matchKeys)
	return matchKeys[0], true
}

// Lookup resolves a column reference against row.
func Lookup(row Row, ref ast.ColumnRef) (types.Value, bool) {
	key, ok := resolveKey(row, ref)
	if !ok {
		return types.Value{}, false
	}
	return row[key], true
}

func columnPart(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[i+1:]
	}
	return key
}

// EvalOperand resolves an operand to its runtime Value. A column lookup
// miss yields NULL rather than an error, matching a predicate's "unknown
// column reads as null" semantics.
func EvalOperand(op ast.Operand, row Row) (types.Value, error) {
	if !op.IsColumn {
		if op.Literal.IsString {
			return types.NewText(op.Literal.Str), nil
		}
		return types.NewInt(op.Literal.Int), nil
	}
	v, ok := Lookup(row, op.Column)
	if !ok {
		return types.Null, nil
	}
	return v, nil
}

// compareForPredicate reports the three-way comparison of left and right
// for predicate evaluation, and whether the comparison is even eligible to
// be true: a predicate never holds when either side is null, nor when one
// side is an integer and the other text (no implicit int/string coercion
// in a predicate, unlike Compare's display-oriented fallback).
func compareForPredicate(left, right types.Value) (c int, eligible bool) {
	if left.IsNull() || right.IsNull() {
		return 0, false
	}
	if left.Kind != right.Kind {
		return 0, false
	}
	return types.Compare(left, right), true
}

// EvalComparison evaluates a single leaf comparison against row.
func EvalComparison(cmp *ast.Comparison, row Row) (bool, error) {
	left, err := EvalOperand(cmp.Left, row)
	if err != nil {
		return false, err
	}
	right, err := EvalOperand(cmp.Right, row)
	if err != nil {
		return false, err
	}
	c, eligible := compareForPredicate(left, right)
	if !eligible {
		return false, nil
	}
	switch cmp.Op {
	case ast.OpEq:
		return c == 0, nil
	case ast.OpNeq:
		return c != 0, nil
	case ast.OpLt:
		return c < 0, nil
	case ast.OpGt:
		return c > 0, nil
	case ast.OpLte:
		return c <= 0, nil
	case ast.OpGte:
		return c >= 0, nil
	default:
		return false, fmt.Errorf("unsupported comparison operator %q", cmp.Op)
	}
}

// EvalCondition recursively evaluates a predicate tree against row. This
// evaluates And/Or structurally instead of flattening to a conjunct
// list, so OR retains its actual meaning.
func EvalCondition(cond ast.Condition, row Row) (bool, error) {
	switch c := cond.(type) {
	case nil:
		return true, nil
	case *ast.Comparison:
		return EvalComparison(c, row)
	case *ast.And:
		left, err := EvalCondition(c.Left, row)
		if err != nil {
			return false, err
		}
		if !left {
			return false, nil
		}
		return EvalCondition(c.Right, row)
	case *ast.Or:
		left, err := EvalCondition(c.Left, row)
		if err != nil {
			return false, err
		}
		if left {
			return true, nil
		}
		return EvalCondition(c.Right, row)
	default:
		return false, fmt.Errorf("unsupported condition type %T", cond)
	}
}
