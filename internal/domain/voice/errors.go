package voice

import (
	"errors"
	"fmt"
)

// Internal error taxonomy. Handlers log these with full context and map them
// to the closed vendor enum at the boundary; the rich reason never leaves the
// process.
var (
	// ErrDenied covers every code, token, and client-credential failure.
	// Callers must not be able to distinguish why.
	ErrDenied = errors.New("voice: authorization denied")
	// ErrNotLinked signals a valid token whose Link record no longer exists.
	// It is a denial; the richer name exists for logs.
	ErrNotLinked = fmt.Errorf("%w: account not linked", ErrDenied)
	// ErrNotFound covers device/plant/grove lookup misses and scope misses.
	ErrNotFound = errors.New("voice: device not found")
	// ErrTransient marks storage or network failures safe to retry.
	ErrTransient = errors.New("voice: transient failure")
	// ErrUnsupported marks intents or commands outside the contract.
	ErrUnsupported = errors.New("voice: unsupported operation")
)
