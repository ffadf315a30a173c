// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()
	require.NotNil(t, cfg)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 64, cfg.NodeFanout)
	assert.Equal(t, 64, cfg.BlockCapacity)
	assert.Equal(t, 4, cfg.CacheK)
	assert.Equal(t, 8192, cfg.CacheCapacity)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestConfigLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected func(*testing.T, *Config)
	}{
		{
			name:    "data dir from environment",
			envVars: map[string]string{"TICKETD_DATA_DIR": "/var/lib/ticketd"},
			expected: func(t *testing.T, c *Config) {
				assert.Equal(t, "/var/lib/ticketd", c.DataDir)
			},
		},
		{
			name:    "cache capacity from environment",
			envVars: map[string]string{"TICKETD_CACHE_CAPACITY": "4096"},
			expected: func(t *testing.T, c *Config) {
				assert.Equal(t, 4096, c.CacheCapacity)
			},
		},
		{
			name:    "node fanout from environment",
			envVars: map[string]string{"TICKETD_NODE_FANOUT": "128"},
			expected: func(t *testing.T, c *Config) {
				assert.Equal(t, 128, c.NodeFanout)
			},
		},
		{
			name: "all environment variables",
			envVars: map[string]string{
				"TICKETD_DATA_DIR":        "/data",
				"TICKETD_NODE_FANOUT":     "32",
				"TICKETD_BLOCK_CAPACITY":  "32",
				"TICKETD_CACHE_K":         "2",
				"TICKETD_CACHE_CAPACITY":  "1024",
				"TICKETD_HTTP_ADDR":       ":9090",
				"TICKETD_LOG_LEVEL":       "debug",
				"TICKETD_LOG_FORMAT":      "json",
			},
			expected: func(t *testing.T, c *Config) {
				assert.Equal(t, "/data", c.DataDir)
				assert.Equal(t, 32, c.NodeFanout)
				assert.Equal(t, 32, c.BlockCapacity)
				assert.Equal(t, 2, c.CacheK)
				assert.Equal(t, 1024, c.CacheCapacity)
				assert.Equal(t, ":9090", c.HTTPAddr)
				assert.Equal(t, "debug", c.LogLevel)
				assert.Equal(t, "json", c.LogFormat)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg := NewDefault()
			cfg.Load()
			tt.expected(t, cfg)
		})
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectedErr error
	}{
		{
			name:        "valid config",
			config:      &Config{DataDir: "./data", CacheCapacity: 8192, CacheK: 4, NodeFanout: 64, BlockCapacity: 64},
			expectedErr: nil,
		},
		{
			name:        "missing data dir",
			config:      &Config{CacheCapacity: 8192, CacheK: 4, NodeFanout: 64, BlockCapacity: 64},
			expectedErr: ErrMissingDataDir,
		},
		{
			name:        "invalid cache capacity",
			config:      &Config{DataDir: "./data", CacheCapacity: 0, CacheK: 4, NodeFanout: 64, BlockCapacity: 64},
			expectedErr: ErrInvalidCacheCapacity,
		},
		{
			name:        "invalid cache K",
			config:      &Config{DataDir: "./data", CacheCapacity: 8192, CacheK: 0, NodeFanout: 64, BlockCapacity: 64},
			expectedErr: ErrInvalidCacheK,
		},
		{
			name:        "invalid node fanout",
			config:      &Config{DataDir: "./data", CacheCapacity: 8192, CacheK: 4, NodeFanout: 2, BlockCapacity: 64},
			expectedErr: ErrInvalidNodeFanout,
		},
		{
			name:        "invalid block capacity",
			config:      &Config{DataDir: "./data", CacheCapacity: 8192, CacheK: 4, NodeFanout: 64, BlockCapacity: 2},
			expectedErr: ErrInvalidBlockCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
