package models

import "errors"

// ErrPartEventImmutable is returned when code tries to update or delete a part event
var ErrPartEventImmutable = errors.New("part events are append-only")
