package rowexec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanodb/nanodb/ast"
	"github.com/nanodb/nanodb/types"
)

func ageRows(ages ...interface{}) []Row {
	rows := make([]Row, len(ages))
	for i, a := range ages {
		if a == nil {
			rows[i] = Row{"student.age": types.Null}
			continue
		}
		rows[i] = Row{"student.age": types.NewInt(int64(a.(int)))}
	}
	return rows
}

func ageColumn() *ast.ColumnRef {
	return &ast.ColumnRef{Qualifier: "student", Name: "age"}
}

func TestComputeAggregateCountStarCountsAllRows(t *testing.T) {
	require := require.New(t)
	v, err := computeAggregate(ast.AggregateCall{Func: ast.FuncCount}, ageRows(1, 2, nil))
	require.NoError(err)
	require.Equal(types.NewInt(3), v)
}

func TestComputeAggregateCountColumnSkipsNulls(t *testing.T) {
	require := require.New(t)
	v, err := computeAggregate(ast.AggregateCall{Func: ast.FuncCount, Column: ageColumn()}, ageRows(1, 2, nil))
	require.NoError(err)
	require.Equal(types.NewInt(2), v)
}

func TestComputeAggregateSumOverEmptySetIsZero(t *testing.T) {
	require := require.New(t)
	v, err := computeAggregate(ast.AggregateCall{Func: ast.FuncSum, Column: ageColumn()}, nil)
	require.NoError(err)
	require.Equal(types.NewInt(0), v)
}

func TestComputeAggregateAvgOverEmptySetIsZero(t *testing.T) {
	require := require.New(t)
	v, err := computeAggregate(ast.AggregateCall{Func: ast.FuncAvg, Column: ageColumn()}, nil)
	require.NoError(err)
	require.Equal(types.NewInt(0), v)
}

func TestComputeAggregateMinMaxOverEmptySetIsNull(t *testing.T) {
	require := require.New(t)
	v, err := computeAggregate(ast.AggregateCall{Func: ast.FuncMin, Column: ageColumn()}, nil)
	require.NoError(err)
	require.True(v.IsNull())
}

func TestComputeAggregateMinMax(t *testing.T) {
	require := require.New(t)
	rows := ageRows(5, 1, 9)
	minV, err := computeAggregate(ast.AggregateCall{Func: ast.FuncMin, Column: ageColumn()}, rows)
	require.NoError(err)
	require.Equal(types.NewInt(1), minV)

	maxV, err := computeAggregate(ast.AggregateCall{Func: ast.FuncMax, Column: ageColumn()}, rows)
	require.NoError(err)
	require.Equal(types.NewInt(9), maxV)
}

func TestAggregateOutputKeyDefaultsToFuncAndColumn(t *testing.T) {
	require := require.New(t)
	require.Equal("COUNT(*)", aggregateOutputKey(ast.AggregateCall{Func: ast.FuncCount}))
	require.Equal("SUM(student.age)", aggregateOutputKey(ast.AggregateCall{Func: ast.FuncSum, Column: ageColumn()}))
	require.Equal("total", aggregateOutputKey(ast.AggregateCall{Func: ast.FuncSum, Column: ageColumn(), Alias: "total"}))
}

func TestEvalHavingConditionComputesAggregateOverMembers(t *testing.T) {
	require := require.New(t)
	members := ageRows(1, 2, 3)
	cond := &ast.Comparison{
		Left:  ast.AggregateOperand(&ast.AggregateCall{Func: ast.FuncCount}),
		Op:    ast.OpGt,
		Right: ast.LiteralOperand(ast.IntValue(2)),
	}
	ok, err := EvalHavingCondition(cond, members[0], members)
	require.NoError(err)
	require.True(ok)
}
