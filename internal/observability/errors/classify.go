// Package errors derives short error class names for metric tags and log fields.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"
)

// Classed errors name their own class, e.g. "rate_limit_exceeded".
type Classed interface {
	ErrorClass() string
}

// Classify returns a normalized error class suitable for tagging metrics and logs.
// Errors that implement Classed anywhere in their chain win; otherwise the innermost
// concrete type name is used.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var classed Classed
	if goerrors.As(err, &classed) {
		if c := strings.TrimSpace(classed.ErrorClass()); c != "" {
			return c
		}
	}
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}

// IsCancellation reports whether err stems from a cancelled or expired context.
func IsCancellation(err error) bool {
	return goerrors.Is(err, context.Canceled) || goerrors.Is(err, context.DeadlineExceeded)
}
