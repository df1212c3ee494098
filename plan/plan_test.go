package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanodb/nanodb/ast"
	"github.com/nanodb/nanodb/catalog"
	"github.com/nanodb/nanodb/parser"
	"github.com/nanodb/nanodb/types"
)

func studentCatalog() *catalog.Catalog {
	cat := catalog.New()
	_ = cat.CreateTable("student", []catalog.Column{
		{Name: "id", Type: types.TypeInt},
		{Name: "age", Type: types.TypeInt},
	})
	_ = cat.CreateTable("enrollment", []catalog.Column{
		{Name: "student_id", Type: types.TypeInt},
		{Name: "course", Type: types.TypeText},
	})
	return cat
}

func TestBuildCreateTable(t *testing.T) {
	require := require.New(t)
	stmt, err := parser.Parse("CREATE TABLE t (id INT, name TEXT)")
	require.NoError(err)

	node, err := New(catalog.New()).Build(stmt)
	require.NoError(err)

	ct, ok := node.(*CreateTable)
	require.True(ok)
	require.Equal("t", ct.Table)
	require.Equal(types.TypeInt, ct.Columns[0].Type)
}

func TestBuildSimpleSelectWraps(t *testing.T) {
	require := require.New(t)
	stmt, err := parser.Parse("SELECT id FROM student WHERE age > 10 ORDER BY id")
	require.NoError(err)

	node, err := New(studentCatalog()).Build(stmt)
	require.NoError(err)

	proj, ok := node.(*Project)
	require.True(ok)

	orderBy, ok := proj.Input.(*OrderBy)
	require.True(ok)

	filter, ok := orderBy.Input.(*Filter)
	require.True(ok)

	scan, ok := filter.Input.(*SeqScan)
	require.True(ok)
	require.Equal("student", scan.Table)
}

func TestJoinPushesSingleTablePredicateToRightScan(t *testing.T) {
	require := require.New(t)
	stmt, err := parser.Parse(`
		SELECT s.id FROM student s
		JOIN enrollment e ON s.id = e.student_id
		WHERE e.course = 'math' AND s.age > 10
	`)
	require.NoError(err)

	node, err := New(studentCatalog()).Build(stmt)
	require.NoError(err)

	proj := node.(*Project)
	join, ok := proj.Input.(*Join)
	require.True(ok)

	// e.course = 'math' pushed into right scan as a Filter.
	rightFilter, ok := join.Right.(*Filter)
	require.True(ok)
	cmp := rightFilter.Predicate.(*ast.Comparison)
	require.Equal("course", cmp.Left.Column.Name)

	// s.age > 10 stays on the left side (primary scan), not pushed past the join.
	leftFilter, ok := join.Left.(*Filter)
	require.True(ok)
	leftCmp := leftFilter.Predicate.(*ast.Comparison)
	require.Equal("age", leftCmp.Left.Column.Name)
}

func TestOrConditionNeverPushedBelowJoin(t *testing.T) {
	require := require.New(t)
	stmt, err := parser.Parse(`
		SELECT s.id FROM student s
		JOIN enrollment e ON s.id = e.student_id
		WHERE e.course = 'math' OR e.course = 'art'
	`)
	require.NoError(err)

	node, err := New(studentCatalog()).Build(stmt)
	require.NoError(err)

	proj := node.(*Project)
	// The OR predicate must sit above the Join untouched, never fused into
	// the right scan.
	filter, ok := proj.Input.(*Filter)
	require.True(ok)
	_, ok = filter.Predicate.(*ast.Or)
	require.True(ok)
	_, ok = filter.Input.(*Join)
	require.True(ok)
}

func TestSelectStarHasNoProjectNode(t *testing.T) {
	require := require.New(t)
	stmt, err := parser.Parse("SELECT * FROM student")
	require.NoError(err)

	node, err := New(studentCatalog()).Build(stmt)
	require.NoError(err)

	_, ok := node.(*SeqScan)
	require.True(ok)
}

func TestBuildUpdateWrapsFilterAroundScan(t *testing.T) {
	require := require.New(t)
	stmt, err := parser.Parse("UPDATE student SET age = 1 WHERE id = 1")
	require.NoError(err)

	node, err := New(studentCatalog()).Build(stmt)
	require.NoError(err)

	upd, ok := node.(*Update)
	require.True(ok)
	_, ok = upd.Input.(*Filter)
	require.True(ok)
}

func TestBuildDropTable(t *testing.T) {
	require := require.New(t)
	stmt, err := parser.Parse("DROP TABLE student")
	require.NoError(err)

	node, err := New(studentCatalog()).Build(stmt)
	require.NoError(err)

	dt, ok := node.(*DropTable)
	require.True(ok)
	require.Equal("student", dt.Table)
}
