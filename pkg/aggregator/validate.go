// SPDX-License-Identifier: GPL-3.0-or-later

package aggregator

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

const (
	maxNameLength           = 255
	maxDimensionKeyLength   = 255
	maxDimensionValueLength = 255
	maxValueMetaEntries     = 16
	maxValueMetaKeyLength   = 255
	// MaxValueMetaSize is the serialised JSON size cap of a value_meta payload.
	MaxValueMetaSize = 2048

	reservedDimensionChars = `<>={}(),'";\&`
)

var reValidName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func validateName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Kind: ErrKindName, Reason: "empty"}
	case len(name) > maxNameLength:
		return &ValidationError{Kind: ErrKindName, Field: name, Reason: fmt.Sprintf("longer than %d", maxNameLength)}
	case !reValidName.MatchString(name):
		return &ValidationError{Kind: ErrKindName, Field: name, Reason: "contains characters other than letters, digits, '.', '_' and '-'"}
	}
	return nil
}

func validateDimensions(dims map[string]string) error {
	for k, v := range dims {
		if reason := dimensionProblem(k, maxDimensionKeyLength); reason != "" {
			return &ValidationError{Kind: ErrKindDimensionKey, Field: k, Reason: reason}
		}
		if reason := dimensionProblem(v, maxDimensionValueLength); reason != "" {
			return &ValidationError{Kind: ErrKindDimensionValue, Field: k, Reason: reason}
		}
	}
	return nil
}

func dimensionProblem(s string, maxLen int) string {
	switch {
	case s == "":
		return "empty"
	case len(s) > maxLen:
		return fmt.Sprintf("longer than %d", maxLen)
	case s[0] == '_':
		return "starts with '_'"
	case strings.ContainsAny(s, reservedDimensionChars):
		return fmt.Sprintf("contains one of reserved characters %s", reservedDimensionChars)
	}
	return ""
}

func validateValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Kind: ErrKindValue, Field: fmt.Sprint(v), Reason: "not a finite number"}
	}
	return nil
}

func validateValueMeta(meta map[string]string) error {
	if len(meta) == 0 {
		return nil
	}
	if len(meta) > maxValueMetaEntries {
		return &ValidationError{Kind: ErrKindValueMeta, Reason: fmt.Sprintf("more than %d entries", maxValueMetaEntries)}
	}
	for k := range meta {
		if k == "" {
			return &ValidationError{Kind: ErrKindValueMeta, Reason: "empty key"}
		}
		if len(k) > maxValueMetaKeyLength {
			return &ValidationError{Kind: ErrKindValueMeta, Field: k, Reason: fmt.Sprintf("key longer than %d", maxValueMetaKeyLength)}
		}
	}
	bs, err := json.Marshal(meta)
	if err != nil {
		return &ValidationError{Kind: ErrKindValueMeta, Reason: err.Error()}
	}
	if len(bs) > MaxValueMetaSize {
		return &ValidationError{Kind: ErrKindValueMeta, Reason: fmt.Sprintf("serialised size %d exceeds %d bytes", len(bs), MaxValueMetaSize)}
	}
	return nil
}
