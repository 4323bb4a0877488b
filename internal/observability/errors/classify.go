// Package errors derives low-cardinality labels from errors for metrics and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/target/hotelease-portal/internal/ports"
)

// knownClasses maps port sentinels to stable labels so that wrapping never changes a series.
var knownClasses = []struct {
	err   error
	class string
}{
	{ports.ErrIdentityUnavailable, "identity_unavailable"},
	{ports.ErrInvalidCredentials, "invalid_credentials"},
	{ports.ErrSessionNotFound, "session_not_found"},
	{ports.ErrDirectoryRecordNotFound, "directory_not_found"},
}

// Classify returns a normalized error class suitable for a metric label.
// Context errors and port sentinels map to fixed names; otherwise the innermost
// concrete type is used.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}
	for _, k := range knownClasses {
		if goerrors.Is(err, k.err) {
			return k.class
		}
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
}
