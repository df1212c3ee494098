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

// Package driver exposes an Engine as a database/sql driver, so it can
// be opened with sql.Open and driven through the standard library's
// connection-pooling API in-process. There is no network listener
// behind it: the DSN names a data directory on the local filesystem, and
// every Conn opens its own Engine rooted there.
package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/nanodb/nanodb"
	"github.com/nanodb/nanodb/config"
)

func init() {
	sql.Register("nanodb", &Driver{})
}

// Driver adapts nanodb.Engine to database/sql/driver.Driver.
type Driver struct{}

// Open parses dsn as a data directory path and opens a connection to the
// Engine rooted there.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	connector, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// OpenConnector returns a Connector for dsn, a convenience for callers
// that want to use sql.OpenDB directly instead of the driver registry.
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	return &Connector{driver: d, dataDir: dsn}, nil
}

// Connector opens equivalent Conns against the same data directory, as
// database/sql requires for connection pooling.
type Connector struct {
	driver  *Driver
	dataDir string
}

// Driver returns the Connector's parent Driver.
func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// Connect opens a fresh Engine rooted at the Connector's data directory.
// Every Conn gets its own Engine, but all Engines over the same data
// directory share the same on-disk heap files and system catalog, so
// they observe each other's committed writes.
func (c *Connector) Connect(context.Context) (driver.Conn, error) {
	engine, err := nanodb.New(config.Default(c.dataDir))
	if err != nil {
		return nil, err
	}
	return &Conn{engine: engine}, nil
}
