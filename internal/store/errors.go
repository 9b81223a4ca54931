package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotAccepting is returned when a message append is rejected because
// the target user has turned message acceptance off.
var ErrNotAccepting = errors.New("not accepting messages")
