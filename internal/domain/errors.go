package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidCatalog is returned when the catalog is empty or fails structural validation
	ErrInvalidCatalog = errors.New("catalog is empty or structurally invalid")

	// ErrNoMatch is returned when no candidate survives filtering for an item
	ErrNoMatch = errors.New("no matching product found")

	// ErrIncompatibleUnits is returned when requested and packaged units cannot be compared
	ErrIncompatibleUnits = errors.New("units are not comparable")

	// ErrLLMFailure is returned when a language-model collaborator call fails
	ErrLLMFailure = errors.New("language model request failed")

	// ErrRateLimited is returned when the collaborator reports quota exhaustion
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
