package services

import (
	"errors"
	"fmt"
)

// Sentinel errors reported to command callers. Each maps to a distinct
// user-visible outcome in the bot layer.
var (
	// ErrNotFound means a keyword resolved to no subcommunity.
	ErrNotFound = errors.New("subcommunity not found")

	// ErrStaleRecord means a record exists but its role or channel no
	// longer resolves on Discord. Reported distinctly from ErrNotFound;
	// the record is left untouched.
	ErrStaleRecord = errors.New("subcommunity record is stale")

	// ErrAlreadyExists means an explicit create targeted a name or alias
	// already claimed by a live subcommunity.
	ErrAlreadyExists = errors.New("subcommunity already exists")

	// ErrNotMember means a leave targeted a subcommunity the user does not
	// currently belong to.
	ErrNotMember = errors.New("not a member of this subcommunity")

	// ErrInvalidInput means a command argument failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPermissionDenied means a privileged command came from a caller
	// without the required role.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPartialRemoval means the role was deleted but the channel was
	// not, leaving the record pointing at a half-removed pair.
	ErrPartialRemoval = errors.New("subcommunity partially removed")
)

// PlatformError wraps a failed Discord operation. The originating operation
// is abandoned without retry; the next reconciliation pass or the next
// explicit command retries implicitly.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform operation %s failed: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}
