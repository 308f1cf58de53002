package models

import "github.com/google/uuid"

// assignID fills an empty primary key with a time-ordered UUIDv7 so new rows
// cluster at the end of the index.
func assignID(id *uuid.UUID) {
	if *id != uuid.Nil {
		return
	}
	if v7, err := uuid.NewV7(); err == nil {
		*id = v7
		return
	}
	*id = uuid.New()
}
