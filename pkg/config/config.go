// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"strconv"
)

// Config holds configuration for the ticket reservation engine (§5, §6).
type Config struct {
	// DataDir is the directory holding the node/data/info files for
	// every B+-tree-backed index and bucket store.
	DataDir string

	// NodeFanout is N, the index-node fan-out (§4.5.1).
	NodeFanout int

	// BlockCapacity is M, the data-page capacity (§4.5.1).
	BlockCapacity int

	// CacheK is K in the LRU-K cache eviction policy (§4.4).
	CacheK int

	// CacheCapacity is the number of entries the LRU-K cache holds
	// before evicting (§4.4).
	CacheCapacity int

	// HTTPAddr is the address the optional HTTP façade listens on.
	HTTPAddr string

	// LogLevel is the minimum log level: debug, info, warn, error.
	LogLevel string

	// LogFormat is the log output format: text or json.
	LogFormat string
}

// NewDefault returns the engine's default configuration, with any
// TICKETD_* environment variables already applied over the defaults.
func NewDefault() *Config {
	return &Config{
		DataDir:       getEnvOrDefault("TICKETD_DATA_DIR", "./data"),
		NodeFanout:    getEnvIntOrDefault("TICKETD_NODE_FANOUT", 64),
		BlockCapacity: getEnvIntOrDefault("TICKETD_BLOCK_CAPACITY", 64),
		CacheK:        getEnvIntOrDefault("TICKETD_CACHE_K", 4),
		CacheCapacity: getEnvIntOrDefault("TICKETD_CACHE_CAPACITY", 8192),
		HTTPAddr:      getEnvOrDefault("TICKETD_HTTP_ADDR", ":8080"),
		LogLevel:      getEnvOrDefault("TICKETD_LOG_LEVEL", "info"),
		LogFormat:     getEnvOrDefault("TICKETD_LOG_FORMAT", "text"),
	}
}

// Load refreshes configuration from environment variables.
func (c *Config) Load() {
	c.DataDir = getEnvOrDefault("TICKETD_DATA_DIR", c.DataDir)
	c.NodeFanout = getEnvIntOrDefault("TICKETD_NODE_FANOUT", c.NodeFanout)
	c.BlockCapacity = getEnvIntOrDefault("TICKETD_BLOCK_CAPACITY", c.BlockCapacity)
	c.CacheK = getEnvIntOrDefault("TICKETD_CACHE_K", c.CacheK)
	c.CacheCapacity = getEnvIntOrDefault("TICKETD_CACHE_CAPACITY", c.CacheCapacity)
	c.HTTPAddr = getEnvOrDefault("TICKETD_HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getEnvOrDefault("TICKETD_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("TICKETD_LOG_FORMAT", c.LogFormat)
}

// Validate checks that the configuration can bootstrap the storage layer.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ErrMissingDataDir
	}
	if c.CacheCapacity <= 0 {
		return ErrInvalidCacheCapacity
	}
	if c.CacheK <= 0 {
		return ErrInvalidCacheK
	}
	if c.NodeFanout <= 2 {
		return ErrInvalidNodeFanout
	}
	if c.BlockCapacity <= 2 {
		return ErrInvalidBlockCapacity
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
