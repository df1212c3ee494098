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

// Package storage implements the on-disk page format, the disk manager,
// the LRU buffer pool, and the page-based table heap built on top of them.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PageSize is the fixed on-disk page size in bytes.
const PageSize = 4096

// deletedMarker is the tombstone key: a row with this key set true has
// been logically deleted but not yet reclaimed.
const deletedMarker = "__deleted__"

// ErrPageFull is returned by Page.TryAppendRow when the row would not fit
// within PageSize once serialized.
var ErrPageFull = fmt.Errorf("page content exceeds %d bytes", PageSize)

// pageEnvelope is the on-disk JSON shape of a Page.
type pageEnvelope struct {
	Version int                      `json:"version"`
	Rows    []map[string]interface{} `json:"rows"`
}

// Page is one fixed-size slot of a table heap file: a JSON-encoded row
// list, zero-padded to PageSize. Deletion is a tombstone: a row carrying
// "__deleted__": true is skipped by iteration but stays on the page until
// the page is rewritten.
type Page struct {
	Rows []map[string]interface{}
}

// NewPage returns an empty page.
func NewPage() *Page { return &Page{} }

// Serialize renders the page as a PageSize-byte buffer, zero-padded.
// Returns ErrPageFull if the encoded rows don't fit.
func (p *Page) Serialize() ([]byte, error) {
	data, err := json.Marshal(pageEnvelope{Version: 1, Rows: p.Rows})
	if err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	if len(data) > PageSize {
		return nil, ErrPageFull
	}
	out := make([]byte, PageSize)
	copy(out, data)
	return out, nil
}

// DeserializePage decodes a PageSize-byte buffer back into a Page. A
// buffer that is entirely zero bytes (a freshly allocated, never-written
// page) decodes to an empty Page.
func DeserializePage(data []byte) (*Page, error) {
	text := bytes.TrimRight(data, "\x00")
	if len(text) == 0 {
		return NewPage(), nil
	}
	var env pageEnvelope
	if err := json.Unmarshal(text, &env); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &Page{Rows: env.Rows}, nil
}

// TryAppendRow appends row and reports whether the page still fits within
// PageSize afterward. On failure the page is left unmodified.
func (p *Page) TryAppendRow(row map[string]interface{}) (bool, error) {
	p.Rows = append(p.Rows, row)
	if _, err := p.Serialize(); err != nil {
		if err == ErrPageFull {
			p.Rows = p.Rows[:len(p.Rows)-1]
			return false, nil
		}
		p.Rows = p.Rows[:len(p.Rows)-1]
		return false, err
	}
	return true, nil
}

// MarkDeleted tombstones every live row matching predicate, returning the
// count marked.
func (p *Page) MarkDeleted(predicate func(map[string]interface{}) bool) int {
	count := 0
	for _, r := range p.Rows {
		if isDeleted(r) {
			continue
		}
		if predicate(r) {
			r[deletedMarker] = true
			count++
		}
	}
	return count
}

// LiveRows returns every non-tombstoned row on the page.
func (p *Page) LiveRows() []map[string]interface{} {
	var out []map[string]interface{}
	for _, r := range p.Rows {
		if !isDeleted(r) {
			out = append(out, r)
		}
	}
	return out
}

func isDeleted(row map[string]interface{}) bool {
	v, ok := row[deletedMarker]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
