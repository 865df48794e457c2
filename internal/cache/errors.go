package cache

import "errors"

// Error kinds surfaced from the core. Callers classify with errors.Is and
// map them to transport-level responses (see internal/api).
var (
	// ErrNotFound means the key is absent or the entry has expired.
	ErrNotFound = errors.New("not found")

	// ErrMalformed means the stored value is not in the expected format,
	// e.g. not valid UTF-8 when read through the string API.
	ErrMalformed = errors.New("malformed")

	// ErrConnection is a peer dial/send/receive failure. Connection errors
	// are recovered locally by the anti-entropy rounds and never surface to
	// end clients.
	ErrConnection = errors.New("connection")
)
