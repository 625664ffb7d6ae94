package handler

import "errors"

var (
	// ErrDatabaseNotInitialized is returned when the database is not initialized
	ErrDatabaseNotInitialized = errors.New("database not initialized")
	// ErrMediaNotAccessible is returned when the media root cannot be written
	ErrMediaNotAccessible = errors.New("media root not accessible")
)
