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

// Package types defines the runtime scalar values and declared column
// types shared by the analyzer, planner, and executor layers.
package types

import (
	"fmt"

	"github.com/spf13/cast"
)

// Kind tags the runtime class of a Value.
type Kind int

const (
	KindInt Kind = iota
	KindText
	KindNull
)

// Value is a tagged runtime scalar: an integer, a text string, or NULL.
type Value struct {
	Kind Kind
	Int  int64
	Text string
}

// NewInt builds an integer Value.
func NewInt(v int64) Value { return Value{Kind: KindInt, Int: v} }

// NewText builds a text Value.
func NewText(v string) Value { return Value{Kind: KindText, Text: v} }

// Null is the singular NULL value.
var Null = Value{Kind: KindNull}

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// String renders v for display: the bare integer, the bare text, or "NULL".
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindText:
		return v.Text
	default:
		return "NULL"
	}
}

// Raw unwraps v to the interface{} the JSON page codec and column
// coercion layer operate on: int64, string, or nil.
func (v Value) Raw() interface{} {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindText:
		return v.Text
	default:
		return nil
	}
}

// FromRaw wraps a decoded JSON scalar (int64/float64/string/nil, as
// produced by encoding/json) back into a Value, coercing numeric kinds via
// cast since JSON numbers decode as float64.
func FromRaw(raw interface{}) Value {
	if raw == nil {
		return Null
	}
	switch v := raw.(type) {
	case string:
		return NewText(v)
	case int64:
		return NewInt(v)
	default:
		if n, err := cast.ToInt64E(raw); err == nil {
			return NewInt(n)
		}
		return NewText(cast.ToString(raw))
	}
}

// ColumnType names a declared column type.
type ColumnType string

const (
	TypeInt     ColumnType = "INT"
	TypeText    ColumnType = "TEXT"
	TypeVarchar ColumnType = "VARCHAR"
)

// Coerce converts v to match declared type t, the way a storage engine
// normalizes literals at insert/update time. INT columns require an
// integer value; TEXT and VARCHAR accept any value, stringified.
func Coerce(v Value, t ColumnType) (Value, error) {
	if v.IsNull() {
		return v, nil
	}
	switch t {
	case TypeInt:
		if v.Kind == KindInt {
			return v, nil
		}
		n, err := cast.ToInt64E(v.Text)
		if err != nil {
			return Value{}, fmt.Errorf("cannot coerce %q to INT: %w", v.Text, err)
		}
		return NewInt(n), nil
	case TypeText, TypeVarchar:
		if v.Kind == KindText {
			return v, nil
		}
		return NewText(cast.ToString(v.Raw())), nil
	default:
		return Value{}, fmt.Errorf("unknown column type %q", t)
	}
}

// Compare orders two values: NULLs sort before everything else and equal
// each other; INT/INT compares numerically; TEXT/TEXT compares
// lexicographically. Comparing an INT to a TEXT falls back to string
// comparison of their String() forms, mirroring dynamically-typed
// comparison semantics rather than raising a type error.
func Compare(a, b Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}
	if a.Kind == KindInt && b.Kind == KindInt {
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	}
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b compare equal.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }
