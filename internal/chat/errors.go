package chat

import "errors"

// Sentinel errors for the failure modes that callers branch on.
// Wrap with fmt.Errorf("...: %w", err) to add context; check with errors.Is.
var (
	// ErrDuplicateUsername is returned by registration when an active
	// session already holds the requested username (exact, case-sensitive).
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrWrongSecret is returned when a frame cannot be decrypted because
	// the peer's shared secret does not match ours. It is never folded into
	// a malformed-command or parse error.
	ErrWrongSecret = errors.New("wrong shared secret")

	// ErrPermissionDenied is returned when a file exists but the requester
	// is neither its uploader, its recipient, nor allowed by public
	// visibility.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrFileNotFound is returned when no record exists for the requested
	// filename. Distinct from ErrPermissionDenied.
	ErrFileNotFound = errors.New("file not found")

	// ErrConnectionLost is returned when a peer's connection fails on read
	// or write, or when its outbound queue overflows.
	ErrConnectionLost = errors.New("connection lost")
)
