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

// Package parser is a single-lookahead recursive descent parser that turns
// a token stream into a typed ast.Statement.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nanodb/nanodb/ast"
	"github.com/nanodb/nanodb/lexer"
	"github.com/nanodb/nanodb/token"
)

// Error is a parse error: an unexpected token, with position, the observed
// lexeme, and (when known) what was expected instead.
type Error struct {
	Line     int
	Column   int
	Observed string
	Expected string
}

func (e *Error) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("unexpected %q at line %d, column %d; expected %s", e.Observed, e.Line, e.Column, e.Expected)
	}
	return fmt.Sprintf("unexpected %q at line %d, column %d", e.Observed, e.Line, e.Column)
}

// Parser holds the token stream and the single token of lookahead.
type Parser struct {
	tokens []token.Token
	pos    int
	cur    token.Token
}

// New constructs a Parser over an already-tokenized statement.
func New(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens}
	if len(tokens) > 0 {
		p.cur = tokens[0]
	} else {
		p.cur = token.Token{Kind: token.EOF}
	}
	return p
}

// Parse tokenizes and parses a single SQL statement, accepting an optional
// trailing semicolon and requiring EOF afterward.
func Parse(source string) (ast.Statement, error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	p := New(toks)
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.curIsDelimiter(";") {
		p.advance()
	}
	if p.cur.Kind != token.EOF {
		return nil, p.unexpected("end of statement")
	}
	return stmt, nil
}

func (p *Parser) advance() {
	p.pos++
	if p.pos < len(p.tokens) {
		p.cur = p.tokens[p.pos]
	} else {
		p.cur = token.Token{Kind: token.EOF}
	}
}

func (p *Parser) unexpected(expected string) error {
	observed := p.cur.Lexeme
	if p.cur.Kind == token.EOF {
		observed = "<eof>"
	}
	return &Error{Line: p.cur.Line, Column: p.cur.Column, Observed: observed, Expected: expected}
}

func (p *Parser) curIsKeyword(kw string) bool {
	return p.cur.Kind == token.KEYWORD && p.cur.Lexeme == kw
}

func (p *Parser) curIsDelimiter(d string) bool {
	return p.cur.Kind == token.DELIMITER && p.cur.Lexeme == d
}

func (p *Parser) curIsOperator(op string) bool {
	return p.cur.Kind == token.OPERATOR && p.cur.Lexeme == op
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.curIsKeyword(kw) {
		return p.unexpected(kw)
	}
	p.advance()
	return nil
}

func (p *Parser) expectDelimiter(d string) error {
	if !p.curIsDelimiter(d) {
		return p.unexpected(fmt.Sprintf("%q", d))
	}
	p.advance()
	return nil
}

func (p *Parser) expectIdentifier() (string, error) {
	if p.cur.Kind != token.IDENTIFIER {
		return "", p.unexpected("identifier")
	}
	name := p.cur.Lexeme
	p.advance()
	return name, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.curIsKeyword("CREATE"):
		return p.parseCreateTable()
	case p.curIsKeyword("DROP"):
		return p.parseDropTable()
	case p.curIsKeyword("INSERT"):
		return p.parseInsert()
	case p.curIsKeyword("SELECT"):
		return p.parseSelect()
	case p.curIsKeyword("UPDATE"):
		return p.parseUpdate()
	case p.curIsKeyword("DELETE"):
		return p.parseDelete()
	default:
		return nil, p.unexpected("CREATE, DROP, INSERT, SELECT, UPDATE, or DELETE")
	}
}

// ---------------------------------------------------------------------------
// CREATE TABLE / DROP TABLE
// ---------------------------------------------------------------------------

func (p *Parser) parseCreateTable() (ast.Statement, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectDelimiter("("); err != nil {
		return nil, err
	}

	var cols []ast.ColumnDef
	for {
		colName, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		typeName, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		cols = append(cols, ast.ColumnDef{Name: colName, Type: typeName})
		if p.curIsDelimiter(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectDelimiter(")"); err != nil {
		return nil, err
	}
	return &ast.CreateTable{Table: name, Columns: cols}, nil
}

func (p *Parser) parseTypeName() (string, error) {
	for _, kw := range []string{"INT", "TEXT", "VARCHAR"} {
		if p.curIsKeyword(kw) {
			p.advance()
			return kw, nil
		}
	}
	return "", p.unexpected("INT, TEXT, or VARCHAR")
}

func (p *Parser) parseDropTable() (ast.Statement, error) {
	if err := p.expectKeyword("DROP"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	return &ast.DropTable{Table: name}, nil
}

// ---------------------------------------------------------------------------
// INSERT
// ---------------------------------------------------------------------------

func (p *Parser) parseInsert() (ast.Statement, error) {
	if err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	var columns []string
	if p.curIsDelimiter("(") {
		p.advance()
		for {
			col, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
			if p.curIsDelimiter(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectDelimiter(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}

	var rows [][]ast.Value
	for {
		row, err := p.parseValueRow()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.curIsDelimiter(",") {
			p.advance()
			continue
		}
		break
	}

	return &ast.Insert{Table: table, Columns: columns, Rows: rows}, nil
}

func (p *Parser) parseValueRow() ([]ast.Value, error) {
	if err := p.expectDelimiter("("); err != nil {
		return nil, err
	}
	var vals []ast.Value
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		if p.curIsDelimiter(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectDelimiter(")"); err != nil {
		return nil, err
	}
	return vals, nil
}

func (p *Parser) parseLiteral() (ast.Value, error) {
	switch p.cur.Kind {
	case token.NUMBER:
		n, err := strconv.ParseInt(p.cur.Lexeme, 10, 64)
		if err != nil {
			return ast.Value{}, &Error{Line: p.cur.Line, Column: p.cur.Column, Observed: p.cur.Lexeme, Expected: "integer literal"}
		}
		p.advance()
		return ast.IntValue(n), nil
	case token.STRING:
		s := p.cur.Lexeme
		p.advance()
		return ast.StrValue(s), nil
	default:
		return ast.Value{}, p.unexpected("a number or string literal")
	}
}

// ---------------------------------------------------------------------------
// Column references and expressions (shared by SELECT/UPDATE/DELETE)
// ---------------------------------------------------------------------------

func (p *Parser) parseColumnRef() (ast.ColumnRef, error) {
	first, err := p.expectIdentifier()
	if err != nil {
		return ast.ColumnRef{}, err
	}
	if p.curIsDelimiter(".") {
		p.advance()
		second, err := p.expectIdentifier()
		if err != nil {
			return ast.ColumnRef{}, err
		}
		return ast.ColumnRef{Qualifier: first, Name: second}, nil
	}
	return ast.ColumnRef{Name: first}, nil
}

func (p *Parser) parseOperand() (ast.Operand, error) {
	if p.cur.Kind == token.KEYWORD {
		if fn, ok := aggregateFuncs[p.cur.Lexeme]; ok {
			call, err := p.parseAggregateExpr(fn)
			if err != nil {
				return ast.Operand{}, err
			}
			return ast.AggregateOperand(call), nil
		}
	}
	if p.cur.Kind == token.IDENTIFIER {
		col, err := p.parseColumnRef()
		if err != nil {
			return ast.Operand{}, err
		}
		return ast.ColumnOperand(col), nil
	}
	v, err := p.parseLiteral()
	if err != nil {
		return ast.Operand{}, err
	}
	return ast.LiteralOperand(v), nil
}

var compareOps = map[string]ast.CompareOp{
	"=": ast.OpEq, "<>": ast.OpNeq, "!=": ast.OpNeq,
	"<": ast.OpLt, ">": ast.OpGt, "<=": ast.OpLte, ">=": ast.OpGte,
}

func (p *Parser) parseComparison() (*ast.Comparison, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != token.OPERATOR {
		return nil, p.unexpected("a comparison operator")
	}
	op, ok := compareOps[p.cur.Lexeme]
	if !ok {
		return nil, p.unexpected("one of = <> != < > <= >=")
	}
	p.advance()
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &ast.Comparison{Left: left, Op: op, Right: right}, nil
}

// parseCondition implements precedence OR < AND < comparison; comparisons
// do not recurse further.
func (p *Parser) parseCondition() (ast.Condition, error) {
	left, err := p.parseAndCondition()
	if err != nil {
		return nil, err
	}
	for p.curIsKeyword("OR") {
		p.advance()
		right, err := p.parseAndCondition()
		if err != nil {
			return nil, err
		}
		left = &ast.Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndCondition() (ast.Condition, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	var cond ast.Condition = left
	for p.curIsKeyword("AND") {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		cond = &ast.And{Left: cond, Right: right}
	}
	return cond, nil
}

// ---------------------------------------------------------------------------
// SELECT
// ---------------------------------------------------------------------------

func (p *Parser) parseSelect() (ast.Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}

	stmt := &ast.Select{}
	if p.curIsDelimiter("*") {
		p.advance()
		stmt.Star = true
	} else {
		items, err := p.parseSelectItems()
		if err != nil {
			return nil, err
		}
		stmt.Items = items
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	stmt.Table = table
	if alias, ok, err := p.parseOptionalAlias(); err != nil {
		return nil, err
	} else if ok {
		stmt.Alias = alias
	}

	for p.isJoinStart() {
		j, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		stmt.Joins = append(stmt.Joins, j)
	}

	if p.curIsKeyword("WHERE") {
		p.advance()
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmt.Where = cond
	}

	if p.curIsKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		var cols []ast.ColumnRef
		for {
			c, err := p.parseColumnRef()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.curIsDelimiter(",") {
				p.advance()
				continue
			}
			break
		}
		group := &ast.GroupBy{Columns: cols}
		if p.curIsKeyword("HAVING") {
			p.advance()
			having, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			group.Having = having
		}
		stmt.Group = group
	}

	if p.curIsKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			col, err := p.parseColumnRef()
			if err != nil {
				return nil, err
			}
			asc := true
			if p.curIsKeyword("ASC") {
				p.advance()
			} else if p.curIsKeyword("DESC") {
				p.advance()
				asc = false
			}
			stmt.OrderBy = append(stmt.OrderBy, ast.OrderKey{Column: col, Ascending: asc})
			if p.curIsDelimiter(",") {
				p.advance()
				continue
			}
			break
		}
	}

	return stmt, nil
}

// parseOptionalAlias consumes an optional `[AS] identifier` alias, taking
// care not to swallow a following clause keyword (JOIN/WHERE/...).
func (p *Parser) parseOptionalAlias() (string, bool, error) {
	if p.curIsKeyword("AS") {
		p.advance()
		name, err := p.expectIdentifier()
		if err != nil {
			return "", false, err
		}
		return name, true, nil
	}
	if p.cur.Kind == token.IDENTIFIER {
		name := p.cur.Lexeme
		p.advance()
		return name, true, nil
	}
	return "", false, nil
}

func (p *Parser) isJoinStart() bool {
	switch {
	case p.curIsKeyword("JOIN"):
		return true
	case p.curIsKeyword("INNER"), p.curIsKeyword("LEFT"), p.curIsKeyword("RIGHT"), p.curIsKeyword("OUTER"):
		return true
	}
	return false
}

func (p *Parser) parseJoin() (ast.Join, error) {
	kind := ast.InnerJoin
	switch {
	case p.curIsKeyword("INNER"):
		p.advance()
		kind = ast.InnerJoin
	case p.curIsKeyword("LEFT"):
		p.advance()
		kind = ast.LeftJoin
	case p.curIsKeyword("RIGHT"):
		p.advance()
		kind = ast.RightJoin
	case p.curIsKeyword("OUTER"):
		p.advance()
		kind = ast.OuterJoin
	}
	if err := p.expectKeyword("JOIN"); err != nil {
		return ast.Join{}, err
	}
	table, err := p.expectIdentifier()
	if err != nil {
		return ast.Join{}, err
	}
	var alias string
	if a, ok, err := p.parseOptionalAlias(); err != nil {
		return ast.Join{}, err
	} else if ok {
		alias = a
	}
	if err := p.expectKeyword("ON"); err != nil {
		return ast.Join{}, err
	}
	cond, err := p.parseComparison()
	if err != nil {
		return ast.Join{}, err
	}
	return ast.Join{Table: table, Alias: alias, Kind: kind, Condition: cond}, nil
}

func (p *Parser) parseSelectItems() ([]ast.SelectItem, error) {
	var items []ast.SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.curIsDelimiter(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

var aggregateFuncs = map[string]ast.AggregateFunc{
	"COUNT": ast.FuncCount, "SUM": ast.FuncSum, "AVG": ast.FuncAvg, "MIN": ast.FuncMin, "MAX": ast.FuncMax,
}

func (p *Parser) parseSelectItem() (ast.SelectItem, error) {
	if p.cur.Kind == token.KEYWORD {
		if fn, ok := aggregateFuncs[p.cur.Lexeme]; ok {
			call, err := p.parseAggregateExpr(fn)
			if err != nil {
				return ast.SelectItem{}, err
			}
			if p.curIsKeyword("AS") {
				p.advance()
				alias, err := p.expectIdentifier()
				if err != nil {
					return ast.SelectItem{}, err
				}
				call.Alias = alias
			}
			return ast.SelectItem{Aggregate: call}, nil
		}
	}
	col, err := p.parseColumnRef()
	if err != nil {
		return ast.SelectItem{}, err
	}
	item := ast.SelectItem{Column: &col}
	if p.curIsKeyword("AS") {
		p.advance()
		alias, err := p.expectIdentifier()
		if err != nil {
			return ast.SelectItem{}, err
		}
		item.Alias = alias
	}
	return item, nil
}

// parseAggregateExpr parses `FUNC(*)` or `FUNC(column)`, without any
// trailing alias — callers that accept an alias (a SELECT item) parse it
// themselves afterward.
func (p *Parser) parseAggregateExpr(fn ast.AggregateFunc) (*ast.AggregateCall, error) {
	p.advance() // consume function keyword
	if err := p.expectDelimiter("("); err != nil {
		return nil, err
	}
	call := &ast.AggregateCall{Func: fn}
	if p.curIsDelimiter("*") {
		if fn != ast.FuncCount {
			return nil, p.unexpected("a column reference (only COUNT accepts *)")
		}
		p.advance()
	} else {
		col, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		call.Column = &col
	}
	if err := p.expectDelimiter(")"); err != nil {
		return nil, err
	}
	return call, nil
}

// ---------------------------------------------------------------------------
// UPDATE / DELETE
// ---------------------------------------------------------------------------

func (p *Parser) parseUpdate() (ast.Statement, error) {
	if err := p.expectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	var assigns []ast.Assignment
	for {
		col, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if !p.curIsOperator("=") {
			return nil, p.unexpected("=")
		}
		p.advance()
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, ast.Assignment{Column: col, Value: val})
		if p.curIsDelimiter(",") {
			p.advance()
			continue
		}
		break
	}
	stmt := &ast.Update{Table: table, Assignments: assigns}
	if p.curIsKeyword("WHERE") {
		p.advance()
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmt.Where = cond
	}
	return stmt, nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	stmt := &ast.Delete{Table: table}
	if p.curIsKeyword("WHERE") {
		p.advance()
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmt.Where = cond
	}
	return stmt, nil
}

// SplitStatements splits multi-statement input on top-level `;`, honoring
// string-literal escaping so a semicolon inside a quoted string is not
// treated as a separator. Empty trailing fragments (trailing `;` or blank
// input) are omitted.
func SplitStatements(input string) []string {
	var stmts []string
	var cur strings.Builder
	inString := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case inString:
			cur.WriteByte(c)
			if c == '\\' && i+1 < len(input) {
				i++
				cur.WriteByte(input[i])
				continue
			}
			if c == '\'' {
				inString = false
			}
		case c == '\'':
			inString = true
			cur.WriteByte(c)
		case c == ';':
			if s := strings.TrimSpace(cur.String()); s != "" {
				stmts = append(stmts, s)
			}
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
