// SPDX-License-Identifier: GPL-3.0-or-later

package aggregator

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected submission.
type ErrorKind int

const (
	ErrKindName ErrorKind = iota
	ErrKindDimensionKey
	ErrKindDimensionValue
	ErrKindValue
	ErrKindValueMeta
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindName:
		return "name"
	case ErrKindDimensionKey:
		return "dimension key"
	case ErrKindDimensionValue:
		return "dimension value"
	case ErrKindValue:
		return "value"
	case ErrKindValueMeta:
		return "value_meta"
	default:
		return "unknown"
	}
}

// ValidationError is returned by SubmitMetric for a malformed submission.
// The aggregator state is left untouched.
type ValidationError struct {
	Kind   ErrorKind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("aggregator: invalid %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("aggregator: invalid %s '%s': %s", e.Kind, e.Field, e.Reason)
}

var (
	errNonFiniteIncrement = errors.New("aggregator: non-finite counter increment")
	errRateTimeConflict   = errors.New("aggregator: rate samples share the same timestamp")
)

// IsValidationError reports whether err (or any error it wraps) is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
