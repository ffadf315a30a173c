package config

import "errors"

var (
	// ErrMissingDataDir is returned when the data directory is not set.
	ErrMissingDataDir = errors.New("data directory is required")

	// ErrInvalidCacheCapacity is returned when the cache capacity is invalid.
	ErrInvalidCacheCapacity = errors.New("cache capacity must be greater than 0")

	// ErrInvalidCacheK is returned when the cache K is invalid.
	ErrInvalidCacheK = errors.New("cache K must be greater than 0")

	// ErrInvalidNodeFanout is returned when the node fanout is invalid.
	ErrInvalidNodeFanout = errors.New("node fanout must be greater than 2")

	// ErrInvalidBlockCapacity is returned when the data-page capacity is invalid.
	ErrInvalidBlockCapacity = errors.New("block capacity must be greater than 2")
)
