package params

import "errors"

// Sentinel errors for the params package.
// Use errors.Is to check: errors.Is(err, params.ErrRange)
var (
	ErrRange            = errors.New("params: value out of range")
	ErrInvalidParameter = errors.New("params: unknown parameter")
	ErrInvalidAction    = errors.New("params: unknown action")
)
