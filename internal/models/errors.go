package models

import "errors"

// ErrMissingEvent is returned for frames without an event name.
var ErrMissingEvent = errors.New("envelope has no event name")
