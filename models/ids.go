package models

import "github.com/google/uuid"

// newID returns the string primary key used by every table
func newID() string {
	return uuid.NewString()
}

// assignID sets id when the caller did not provide one
func assignID(id *string) {
	if *id == "" {
		*id = newID()
	}
}
