package core

import (
	"errors"
)

var (
	// ErrNotFound is returned by stores when a comment, post or option
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoCredential is returned when an operation needs a configured
	// credential and none is stored.
	ErrNoCredential = errors.New("no credential configured")
)
