package store

import "errors"

// Sentinel errors the DataStore can return. The top-level nanoindex package
// maps these onto its own public error kinds via errors.Is.
var (
	ErrInvalidInput = errors.New("store: invalid input")
	ErrConflict     = errors.New("store: conflict")
	ErrNotFound     = errors.New("store: not found")
	ErrStorageFatal = errors.New("store: storage is fatally poisoned")
)
