package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanodb/nanodb/catalog"
	"github.com/nanodb/nanodb/parser"
	"github.com/nanodb/nanodb/types"
)

func studentCatalog() *catalog.Catalog {
	cat := catalog.New()
	_ = cat.CreateTable("student", []catalog.Column{
		{Name: "id", Type: types.TypeInt},
		{Name: "name", Type: types.TypeText},
		{Name: "age", Type: types.TypeInt},
	})
	_ = cat.CreateTable("enrollment", []catalog.Column{
		{Name: "student_id", Type: types.TypeInt},
		{Name: "course", Type: types.TypeText},
	})
	return cat
}

func TestCheckCreateTableDuplicateRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("CREATE TABLE student (id INT)")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckCreateTableDuplicateColumnRejected(t *testing.T) {
	require := require.New(t)
	a := New(catalog.New())
	stmt, err := parser.Parse("CREATE TABLE t (id INT, id TEXT)")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckInsertTypeMismatchRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("INSERT INTO student (id, name, age) VALUES ('x', 'Ada', 20)")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckInsertArityMismatchRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("INSERT INTO student VALUES (1, 'Ada')")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckInsertValidPasses(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("INSERT INTO student (id, name, age) VALUES (1, 'Ada', 20)")
	require.NoError(err)
	require.NoError(a.Check(stmt))
}

func TestCheckSelectUnknownColumnRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("SELECT bogus FROM student")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckSelectJoinResolvesQualifiedColumns(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse(`
		SELECT s.name, e.course FROM student s
		JOIN enrollment e ON s.id = e.student_id
		WHERE s.age > 18
	`)
	require.NoError(err)
	require.NoError(a.Check(stmt))
}

func TestCheckSelectUnqualifiedJoinColumnResolves(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	// "course" only exists on enrollment; resolution walks FROM-then-JOIN order.
	stmt, err := parser.Parse("SELECT course FROM student JOIN enrollment ON student.id = enrollment.student_id")
	require.NoError(err)
	require.NoError(a.Check(stmt))
}

func TestCheckUpdateTypeMismatchRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("UPDATE student SET age = 'old'")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckDeleteUnknownTableRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("DELETE FROM missing")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckUpdateWhereTypeMismatchRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("UPDATE student SET age = 1 WHERE age = 'oops'")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckDeleteWhereTypeMismatchRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("DELETE FROM student WHERE age = 'oops'")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckSelectWhereTypeMismatchRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("SELECT id FROM student WHERE age = 'oops'")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckSelectHavingAggregateComparisonPasses(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse(`
		SELECT student_id, COUNT(*) FROM enrollment
		GROUP BY student_id HAVING COUNT(*) > 1
	`)
	require.NoError(err)
	require.NoError(a.Check(stmt))
}

func TestCheckSelectAggregateInWhereRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("SELECT student_id FROM enrollment WHERE COUNT(*) > 1")
	require.NoError(err)
	require.Error(a.Check(stmt))
}

func TestCheckDropTableUnknownRejected(t *testing.T) {
	require := require.New(t)
	a := New(studentCatalog())
	stmt, err := parser.Parse("DROP TABLE missing")
	require.NoError(err)
	require.Error(a.Check(stmt))
}
