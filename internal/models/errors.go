package models

import "errors"

// Storage sentinels shared by every repository implementation.
var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicateKey = errors.New("duplicate key")
)
