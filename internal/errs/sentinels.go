// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers. Services wrap them with
// fmt.Errorf and the HTTP edge maps them to status codes exactly once.
var (
	// ErrValidation indicates malformed or out-of-bound input. No mutation was performed.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden indicates the caller lacks membership or the required capability.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)
