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

package driver

import "errors"

// Result is the result of an Exec call. nanodb has no auto-increment
// columns, so LastInsertId always errors rather than returning a
// meaningless 0.
type Result struct {
	count int64
}

// LastInsertId always errors: nanodb assigns no surrogate row ids.
func (r *Result) LastInsertId() (int64, error) {
	return 0, errors.New("nanodb: no auto-increment column support")
}

// RowsAffected returns the number of rows the statement inserted,
// updated, or deleted.
func (r *Result) RowsAffected() (int64, error) {
	return r.count, nil
}
