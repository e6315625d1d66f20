package lock

import "errors"

// ErrLocked means another process kept an account's lock past the timeout.
var ErrLocked = errors.New("account lock is held by another process")
