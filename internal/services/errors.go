package services

import "github.com/pkg/errors"

// Sentinel errors mapped to HTTP statuses by the API layer.
var (
	// ErrValidation marks a request the caller can fix.
	ErrValidation = errors.New("validation failed")

	// ErrAccountNotFound is returned when no active account matches the
	// requested tenant.
	ErrAccountNotFound = errors.New("account not found")

	// ErrOrderNotFound is returned when an order lookup comes back empty.
	ErrOrderNotFound = errors.New("order not found")

	// ErrCredential is returned when the marketplace rejects a tenant's
	// credentials during validation.
	ErrCredential = errors.New("invalid credentials")

	// ErrStoreConflict is returned when a store is already bound to a
	// different account.
	ErrStoreConflict = errors.New("store is in use by another account")
)
