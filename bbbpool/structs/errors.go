package structs

import "errors"

// Errors that abort a cycle before any action is taken.
var (
	ErrInventoryMismatch   = errors.New("inventory does not match the pool")
	ErrHosterUnavailable   = errors.New("hoster unavailable")
	ErrCalendarUnavailable = errors.New("calendar unavailable")
)
