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

package storage

import "fmt"

// TableStorage is the physical page-heap view of one table: row append,
// sequential scan, and predicate-driven delete/update, all routed through
// a shared BufferManager.
type TableStorage struct {
	table  string
	disk   *DiskManager
	buffer *BufferManager
}

// NewTableStorage builds a TableStorage for table over disk/buffer.
func NewTableStorage(table string, disk *DiskManager, buffer *BufferManager) *TableStorage {
	return &TableStorage{table: table, disk: disk, buffer: buffer}
}

// AppendRow appends row to the table's last page, allocating a new page
// if the last one is full or the heap file is empty.
func (t *TableStorage) AppendRow(row map[string]interface{}) error {
	numPages, err := t.disk.NumPages(t.table)
	if err != nil {
		return err
	}

	var pageID int
	var page *Page
	if numPages == 0 {
		pageID, page, err = t.buffer.NewPage(t.table)
		if err != nil {
			return err
		}
	} else {
		pageID = numPages - 1
		page, err = t.buffer.GetPage(t.table, pageID)
		if err != nil {
			return err
		}
	}

	ok, err := page.TryAppendRow(row)
	if err != nil {
		return err
	}
	if !ok {
		pageID, page, err = t.buffer.NewPage(t.table)
		if err != nil {
			return err
		}
		ok, err = page.TryAppendRow(row)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("row does not fit in an empty page")
		}
	}
	t.buffer.MarkDirty(t.table, pageID)
	return nil
}

// SeqScan returns every live row across the table's pages, in page and
// row order.
func (t *TableStorage) SeqScan() ([]map[string]interface{}, error) {
	numPages, err := t.disk.NumPages(t.table)
	if err != nil {
		return nil, err
	}
	var rows []map[string]interface{}
	for pid := 0; pid < numPages; pid++ {
		page, err := t.buffer.GetPage(t.table, pid)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.LiveRows()...)
	}
	return rows, nil
}

// DeleteWhere tombstones every live row matching predicate, returning the
// count removed.
func (t *TableStorage) DeleteWhere(predicate func(map[string]interface{}) bool) (int, error) {
	numPages, err := t.disk.NumPages(t.table)
	if err != nil {
		return 0, err
	}
	count := 0
	for pid := 0; pid < numPages; pid++ {
		page, err := t.buffer.GetPage(t.table, pid)
		if err != nil {
			return 0, err
		}
		n := page.MarkDeleted(predicate)
		if n > 0 {
			count += n
			t.buffer.MarkDirty(t.table, pid)
		}
	}
	return count, nil
}

// UpdateWhere applies update to every live row matching predicate,
// in place, returning the count modified.
func (t *TableStorage) UpdateWhere(update func(map[string]interface{}), predicate func(map[string]interface{}) bool) (int, error) {
	numPages, err := t.disk.NumPages(t.table)
	if err != nil {
		return 0, err
	}
	count := 0
	for pid := 0; pid < numPages; pid++ {
		page, err := t.buffer.GetPage(t.table, pid)
		if err != nil {
			return 0, err
		}
		changed := false
		for _, r := range page.Rows {
			if isDeleted(r) {
				continue
			}
			if predicate(r) {
				update(r)
				count++
				changed = true
			}
		}
		if changed {
			t.buffer.MarkDirty(t.table, pid)
		}
	}
	return count, nil
}
