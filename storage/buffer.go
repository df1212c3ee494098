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

import (
	"container/list"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultBufferCapacity is the page-frame capacity a BufferManager uses
// when none is configured.
const DefaultBufferCapacity = 64

// pageKey identifies a cached page.
type pageKey struct {
	table  string
	pageID int
}

// frame is one cached page plus its dirty bit.
type frame struct {
	page  *Page
	dirty bool
}

// EvictionEvent records one frame being evicted from the buffer pool.
type EvictionEvent struct {
	Timestamp time.Time
	Table     string
	PageID    int
	Dirty     bool
	Reason    string
}

// maxEvictionLog bounds the in-memory recent-eviction ring buffer; older
// entries are dropped rather than persisted, since eviction history is a
// diagnostic aid, not durable state.
const maxEvictionLog = 10

// BufferManager is an LRU page cache over a DiskManager, with hit/miss/
// eviction counters for diagnostics. Eviction writes back the evicted
// frame if dirty. Stats live only in memory: unlike a cache meant to
// survive process restarts, these counters reset on every new Engine.
type BufferManager struct {
	disk     *DiskManager
	capacity int

	order  *list.List                    // pageKey, most-recently-used at back
	elems  map[pageKey]*list.Element
	frames map[pageKey]*frame

	hitCount   int64
	missCount  int64
	evictCount int64
	evictLog   []EvictionEvent

	log *logrus.Entry
}

// NewBufferManager creates a BufferManager with the given frame capacity
// over disk.
func NewBufferManager(disk *DiskManager, capacity int, log *logrus.Logger) *BufferManager {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BufferManager{
		disk:     disk,
		capacity: capacity,
		order:    list.New(),
		elems:    make(map[pageKey]*list.Element),
		frames:   make(map[pageKey]*frame),
		log:      log.WithField("component", "buffer_manager"),
	}
}

func (b *BufferManager) touch(key pageKey) {
	if el, ok := b.elems[key]; ok {
		b.order.MoveToBack(el)
		return
	}
	b.elems[key] = b.order.PushBack(key)
}

// GetPage returns the page identified by (table, pageID), pulling it from
// disk into the cache on a miss and evicting the least-recently-used
// frame if the cache is now over capacity.
func (b *BufferManager) GetPage(table string, pageID int) (*Page, error) {
	key := pageKey{table, pageID}
	if f, ok := b.frames[key]; ok {
		b.hitCount++
		b.touch(key)
		return f.page, nil
	}

	b.missCount++
	page, err := b.disk.ReadPage(table, pageID)
	if err != nil {
		return nil, err
	}
	b.frames[key] = &frame{page: page}
	b.touch(key)
	if err := b.evictIfNeeded(); err != nil {
		return nil, err
	}
	return page, nil
}

// NewPage allocates a fresh page for table, caches it dirty, and returns
// its id.
func (b *BufferManager) NewPage(table string) (int, *Page, error) {
	pageID, err := b.disk.AllocatePage(table)
	if err != nil {
		return 0, nil, err
	}
	page := NewPage()
	key := pageKey{table, pageID}
	b.frames[key] = &frame{page: page, dirty: true}
	b.touch(key)
	if err := b.evictIfNeeded(); err != nil {
		return 0, nil, err
	}
	return pageID, page, nil
}

// MarkDirty flags the cached frame for (table, pageID) as needing
// write-back. A no-op if the frame isn't currently cached.
func (b *BufferManager) MarkDirty(table string, pageID int) {
	if f, ok := b.frames[pageKey{table, pageID}]; ok {
		f.dirty = true
	}
}

// FlushPage writes the frame back to disk if dirty, then clears the dirty
// bit.
func (b *BufferManager) FlushPage(table string, pageID int) error {
	key := pageKey{table, pageID}
	f, ok := b.frames[key]
	if !ok || !f.dirty {
		return nil
	}
	if err := b.disk.WritePage(table, pageID, f.page); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// FlushAll writes back every dirty frame currently cached.
func (b *BufferManager) FlushAll() error {
	for key, f := range b.frames {
		if !f.dirty {
			continue
		}
		if err := b.disk.WritePage(key.table, key.pageID, f.page); err != nil {
			return fmt.Errorf("flush %s page %d: %w", key.table, key.pageID, err)
		}
		f.dirty = false
	}
	return nil
}

func (b *BufferManager) evictIfNeeded() error {
	for len(b.frames) > b.capacity {
		el := b.order.Front()
		if el == nil {
			return nil
		}
		key := el.Value.(pageKey)
		b.order.Remove(el)
		delete(b.elems, key)

		f := b.frames[key]
		delete(b.frames, key)
		if f.dirty {
			if err := b.disk.WritePage(key.table, key.pageID, f.page); err != nil {
				return fmt.Errorf("write back evicted page %s/%d: %w", key.table, key.pageID, err)
			}
		}

		b.evictCount++
		event := EvictionEvent{
			Timestamp: time.Now(),
			Table:     key.table,
			PageID:    key.pageID,
			Dirty:     f.dirty,
			Reason:    "capacity_exceeded",
		}
		b.evictLog = append(b.evictLog, event)
		if len(b.evictLog) > maxEvictionLog {
			b.evictLog = b.evictLog[len(b.evictLog)-maxEvictionLog:]
		}
		b.log.WithFields(logrus.Fields{
			"table": event.Table, "page_id": event.PageID, "dirty": event.Dirty, "reason": event.Reason,
		}).Debug("evicted buffer frame")
	}
	return nil
}

// Stats is a point-in-time snapshot of buffer pool counters.
type Stats struct {
	HitCount        int64
	MissCount       int64
	EvictCount      int64
	HitRate         float64
	CacheSize       int
	Capacity        int
	RecentEvictions []EvictionEvent
}

// GetStats returns a snapshot of the current counters, including the
// most recent evictions (bounded by maxEvictionLog). HitRate is 0 when no
// page has been requested yet, rather than NaN.
func (b *BufferManager) GetStats() Stats {
	recent := make([]EvictionEvent, len(b.evictLog))
	copy(recent, b.evictLog)
	var hitRate float64
	if total := b.hitCount + b.missCount; total > 0 {
		hitRate = float64(b.hitCount) / float64(total)
	}
	return Stats{
		HitCount:        b.hitCount,
		MissCount:       b.missCount,
		EvictCount:      b.evictCount,
		HitRate:         hitRate,
		CacheSize:       len(b.frames),
		Capacity:        b.capacity,
		RecentEvictions: recent,
	}
}

// ResetStats zeroes every counter and the eviction log, without touching
// cached pages.
func (b *BufferManager) ResetStats() {
	b.hitCount = 0
	b.missCount = 0
	b.evictCount = 0
	b.evictLog = nil
}

// InvalidateTable drops every cached frame belonging to table without
// writing them back, since the caller (DROP TABLE) is about to delete the
// underlying heap file entirely.
func (b *BufferManager) InvalidateTable(table string) {
	for key, el := range b.elems {
		if key.table != table {
			continue
		}
		b.order.Remove(el)
		delete(b.elems, key)
		delete(b.frames, key)
	}
}
