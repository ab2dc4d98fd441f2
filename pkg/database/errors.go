package database

import "errors"

var (
	// ErrUnknownDatabase means the requested name is not in the configured set.
	ErrUnknownDatabase = errors.New("unknown database")

	// ErrNoDatabases means the manager was asked to work with an empty set.
	ErrNoDatabases = errors.New("no databases configured")
)
