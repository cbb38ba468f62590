package domain

import "errors"

var (
	errInvalidDims     = errors.New("dimensions must be non-negative")
	errInvalidPriority = errors.New("priority must be in [0,100]")
	errInvalidUsage    = errors.New("remaining_uses must be in [0,usage_limit]")
)
