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

// Package nanodb ties the lexer, parser, semantic analyzer, planner, and
// row executor into a single embeddable SQL engine over an on-disk,
// page-based heap with an LRU-buffered page cache.
package nanodb

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nanodb/nanodb/analyzer"
	"github.com/nanodb/nanodb/catalog"
	"github.com/nanodb/nanodb/config"
	"github.com/nanodb/nanodb/parser"
	"github.com/nanodb/nanodb/plan"
	"github.com/nanodb/nanodb/rowexec"
	"github.com/nanodb/nanodb/storage"
	"github.com/nanodb/nanodb/types"
)

// Result is the outcome of a single statement: a row sequence, an
// affected-row count, or a bare acknowledgment, matching whichever of
// the three a query or DDL/DML statement produces.
type Result = rowexec.Result

const (
	ResultRows  = rowexec.ResultRows
	ResultCount = rowexec.ResultCount
	ResultAck   = rowexec.ResultAck
)

// Engine is a SQL engine over one on-disk database directory. Safe for
// concurrent use: every Exec serializes behind a single mutex, since the
// catalog, buffer pool, and heap files have no finer-grained locking of
// their own.
type Engine struct {
	catalog *catalog.Catalog
	system  *storage.SystemCatalog
	disk    *storage.DiskManager
	buffer  *storage.BufferManager

	analyzer *analyzer.Analyzer
	executor *rowexec.Executor

	log *logrus.Logger
	mu  sync.Mutex
}

// New opens (or bootstraps, on first use) the database rooted at
// cfg.DataDir and returns an Engine ready to Exec statements against it.
func New(cfg config.Config) (*Engine, error) {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	disk, err := storage.NewDiskManager(cfg.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "open data directory")
	}
	buffer := storage.NewBufferManager(disk, cfg.BufferCapacity, log)

	sys, err := storage.NewSystemCatalog(disk, buffer)
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap system catalog")
	}

	cat, err := loadCatalog(sys)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog from system catalog")
	}

	e := &Engine{
		catalog: cat,
		system:  sys,
		disk:    disk,
		buffer:  buffer,
		log:     log,
	}
	e.analyzer = analyzer.New(cat)
	e.executor = &rowexec.Executor{Catalog: cat, System: sys, Disk: disk, Buffer: buffer}
	return e, nil
}

// loadCatalog rebuilds the in-memory catalog snapshot from whatever
// tables the system catalog already has registered on disk, so a
// reopened Engine recovers the schemas a previous process created.
func loadCatalog(sys *storage.SystemCatalog) (*catalog.Catalog, error) {
	cat := catalog.New()
	names, err := sys.ListTables()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		meta, err := sys.GetTableColumns(name)
		if err != nil {
			return nil, err
		}
		cols := make([]catalog.Column, len(meta))
		for i, m := range meta {
			cols[i] = catalog.Column{Name: m.Name, Type: types.ColumnType(m.Type)}
		}
		if err := cat.CreateTable(name, cols); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// Exec compiles query through the lex/parse/check/plan pipeline and runs
// it to completion. Each call is tagged with a correlation id for the
// duration of its log lines, so a multi-line failure in the log can be
// traced back to one call. Every call logs one Info-level summary line
// (kind, duration, success) regardless of outcome; per-phase failures
// additionally log a Debug line pinpointing which phase rejected the
// statement. After a statement executes, every dirty buffer frame is
// written back to disk, so a later Engine over the same directory reads it.
func (e *Engine) Exec(query string) (res *Result, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.New().String()
	entry := e.log.WithField("query_id", id)
	entry.WithField("query", query).Debug("executing statement")

	start := time.Now()
	defer func() {
		fields := logrus.Fields{
			"duration": time.Since(start),
			"success":  err == nil,
		}
		if res != nil {
			fields["kind"] = res.Kind
		}
		entry.WithFields(fields).Info("statement complete")
	}()

	stmt, parseErr := parser.Parse(query)
	if parseErr != nil {
		entry.WithError(parseErr).Debug("parse failed")
		return nil, errors.Wrap(parseErr, "parse")
	}

	if checkErr := e.analyzer.Check(stmt); checkErr != nil {
		entry.WithError(checkErr).Debug("semantic check failed")
		return nil, errors.Wrap(checkErr, "semantic check")
	}

	node, planErr := plan.New(e.catalog).Build(stmt)
	if planErr != nil {
		entry.WithError(planErr).Debug("planning failed")
		return nil, errors.Wrap(planErr, "plan")
	}

	res, execErr := e.executor.Execute(node)
	if execErr != nil {
		entry.WithError(execErr).Debug("execution failed")
		return nil, errors.Wrap(execErr, "execute")
	}
	if flushErr := e.buffer.FlushAll(); flushErr != nil {
		entry.WithError(flushErr).Debug("flush failed")
		return nil, errors.Wrap(flushErr, "flush")
	}
	return res, nil
}

// ExecMany splits a multi-statement script on top-level semicolons and
// runs each statement in turn via Exec, stopping at the first error.
func (e *Engine) ExecMany(script string) ([]*Result, error) {
	var results []*Result
	for _, stmt := range parser.SplitStatements(script) {
		res, err := e.Exec(stmt)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
