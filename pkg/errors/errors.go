// Package errors holds the error taxonomy shared by every simulator component.
//
// Two classes exist. Configuration errors abort the whole run before or during
// training. Data errors abort the round in which they occur, and since rounds
// are all-or-nothing, the run with it. Neither class is retried.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is the class of every fatal setup problem.
	ErrConfiguration = errors.New("configuration error")

	// ErrData is the class of every problem with a shard or a batch.
	ErrData = errors.New("data error")

	ErrInvalidClientCount = fmt.Errorf("%w: invalid client count", ErrConfiguration)
	ErrShapeMismatch      = fmt.Errorf("%w: parameter shape mismatch", ErrConfiguration)
	ErrDeviceMismatch     = fmt.Errorf("%w: device mismatch", ErrConfiguration)
	ErrInvalidConfig      = fmt.Errorf("%w: invalid config", ErrConfiguration)

	ErrEmptyShard     = fmt.Errorf("%w: empty shard", ErrData)
	ErrMalformedBatch = fmt.Errorf("%w: malformed batch", ErrData)
	ErrEmptyDataset   = fmt.Errorf("%w: empty dataset", ErrData)
	ErrInvalidData    = fmt.Errorf("%w: invalid data", ErrData)
)

// IsConfiguration reports whether err belongs to the configuration class.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsData reports whether err belongs to the data class.
func IsData(err error) bool {
	return errors.Is(err, ErrData)
}
