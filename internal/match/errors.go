package match

import (
	"errors"
	"fmt"
)

var (
	// ErrDenied is a policy or validation failure. Always expected.
	ErrDenied = errors.New("denied")
	// ErrNotFound reports an unknown match or account.
	ErrNotFound = errors.New("not found")
	// ErrIncorrectData reports a malformed request payload.
	ErrIncorrectData = errors.New("incorrect data")
	// ErrSecurityBreach reports a violated internal invariant.
	ErrSecurityBreach = errors.New("security breach")
)

var errClosed = fmt.Errorf("%w: match removed", ErrNotFound)
