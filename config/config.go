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

// Package config loads the on-disk settings an Engine needs to start:
// where its table files live and how many pages its buffer pool holds.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// DefaultBufferCapacity is the page count a buffer pool gets when a
// loaded Config doesn't set one explicitly.
const DefaultBufferCapacity = 128

// Config is an Engine's bootstrap configuration.
type Config struct {
	// DataDir is the directory holding one heap file per table. Created
	// on first use if it doesn't already exist.
	DataDir string `yaml:"data_dir"`
	// BufferCapacity is the number of pages the buffer pool may hold
	// resident at once before evicting via LRU.
	BufferCapacity int `yaml:"buffer_capacity"`
	// LogLevel is a logrus level name ("debug", "info", "warn", ...).
	// Empty defaults to "info".
	LogLevel string `yaml:"log_level"`
}

// Default returns a Config suitable for an ephemeral engine rooted at
// dataDir.
func Default(dataDir string) Config {
	return Config{DataDir: dataDir, BufferCapacity: DefaultBufferCapacity, LogLevel: "info"}
}

// Load reads and parses a YAML config file at path. Zero-valued optional
// fields are filled with their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("config %q: data_dir is required", path)
	}
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = DefaultBufferCapacity
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
