// Package validate checks column values and fails the pipeline on violations.
// Frames pass through unchanged.
package validate

import "errors"

var ErrInvalid = errors.New("validation failed")
