package csrf

import "errors"

var (
	// ErrTokenMismatch indicates the submitted token is missing or does not
	// equal the session's current token. Requests failing this check are
	// rejected with 403 before any side effect.
	ErrTokenMismatch = errors.New("csrf.token_mismatch")

	// ErrTokenGeneration indicates token generation failed.
	ErrTokenGeneration = errors.New("csrf.token_generation_failed")
)
