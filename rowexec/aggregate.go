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
	"github.com/nanodb/nanodb/types"
)

// aggregateOutputKey names the column an aggregate call projects to when
// no alias was given: "func(column)" or "func(*)" for COUNT.
func aggregateOutputKey(call ast.AggregateCall) string {
	if call.Alias != "" {
		return call.Alias
	}
	col := "*"
	if call.Column != nil {
		col = call.Column.QualifiedName()
	}
	return fmt.Sprintf("%s(%s)", call.Func, col)
}

// computeAggregate folds call over members, the rows of a single group
// (or the whole result set, for an aggregate with no GROUP BY).
func computeAggregate(call ast.AggregateCall, members []Row) (types.Value, error) {
	switch call.Func {
	case ast.FuncCount:
		if call.Column == nil {
			return types.NewInt(int64(len(members))), nil
		}
		var n int64
		for _, r := range members {
			v, ok := Lookup(r, *call.Column)
			if ok && !v.IsNull() {
				n++
			}
		}
		return types.NewInt(n), nil
	case ast.FuncSum, ast.FuncAvg:
		if call.Column == nil {
			return types.Value{}, fmt.Errorf("%s requires a column", call.Func)
		}
		var sum int64
		var count int64
		for _, r := range members {
			v, ok := Lookup(r, *call.Column)
			if !ok || v.IsNull() {
				continue
			}
			n, err := numericValue(v)
			if err != nil {
				return types.Value{}, err
			}
			sum += n
			count++
		}
		if call.Func == ast.FuncSum {
			return types.NewInt(sum), nil
		}
		if count == 0 {
			return types.NewInt(0), nil
		}
		return types.NewInt(sum / count), nil
	case ast.FuncMin, ast.FuncMax:
		if call.Column == nil {
			return types.Value{}, fmt.Errorf("%s requires a column", call.Func)
		}
		var best types.Value
		haveBest := false
		for _, r := range members {
			v, ok := Lookup(r, *call.Column)
			if !ok || v.IsNull() {
				continue
			}
			if !haveBest {
				best = v
				haveBest = true
				continue
			}
			c := types.Compare(v, best)
			if (call.Func == ast.FuncMin && c < 0) || (call.Func == ast.FuncMax && c > 0) {
				best = v
			}
		}
		if !haveBest {
			return types.Null, nil
		}
		return best, nil
	default:
		return types.Value{}, fmt.Errorf("unsupported aggregate function %q", call.Func)
	}
}

func numericValue(v types.Value) (int64, error) {
	if v.Kind != types.KindInt {
		return 0, fmt.Errorf("aggregate over non-numeric value %q", v.String())
	}
	return v.Int, nil
}

// EvalOperandOverGroup resolves op against a group: a column or literal
// operand is evaluated against repRow (any one representative row of the
// group, since GROUP BY columns are constant within it); an aggregate
// operand is computed over every member row.
func EvalOperandOverGroup(op ast.Operand, repRow Row, members []Row) (types.Value, error) {
	if op.IsAggregate {
		return computeAggregate(*op.Aggregate, members)
	}
	return EvalOperand(op, repRow)
}

// EvalHavingComparison evaluates a HAVING leaf comparison, where either
// side may be a plain column/literal (checked against repRow) or an
// aggregate call (computed over members).
func EvalHavingComparison(cmp *ast.Comparison, repRow Row, members []Row) (bool, error) {
	left, err := EvalOperandOverGroup(cmp.Left, repRow, members)
	if err != nil {
		return false, err
	}
	right, err := EvalOperandOverGroup(cmp.Right, repRow, members)
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

// EvalHavingCondition recursively evaluates a HAVING predicate tree over a
// single group, given a representative row and its full member set.
func EvalHavingCondition(cond ast.Condition, repRow Row, members []Row) (bool, error) {
	switch c := cond.(type) {
	case nil:
		return true, nil
	case *ast.Comparison:
		return EvalHavingComparison(c, repRow, members)
	case *ast.And:
		left, err := EvalHavingCondition(c.Left, repRow, members)
		if err != nil {
			return false, err
		}
		if !left {
			return false, nil
		}
		return EvalHavingCondition(c.Right, repRow, members)
	case *ast.Or:
		left, err := EvalHavingCondition(c.Left, repRow, members)
		if err != nil {
			return false, err
		}
		if left {
			return true, nil
		}
		return EvalHavingCondition(c.Right, repRow, members)
	default:
		return false, fmt.Errorf("unsupported condition type %T", cond)
	}
}
