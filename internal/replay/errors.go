package replay

import "errors"

// ErrInvalidOrdering is returned when messages are not properly ordered.
var ErrInvalidOrdering = errors.New("messages are not in deterministic order")
