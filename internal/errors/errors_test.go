package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	plain := NotFound("directory record not found")
	if plain.Error() != "directory record not found" {
		t.Fatalf("unexpected message %q", plain.Error())
	}

	wrapped := Wrap(errors.New("dial tcp"), ErrCodeUnavailable, "identity provider unreachable")
	if wrapped.Error() != "identity provider unreachable: dial tcp" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	err := fmt.Errorf("outer: %w", Wrapf(cause, ErrCodeInternal, "step %d", 2))

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find cause")
	}
	if GetCode(err) != ErrCodeInternal {
		t.Fatalf("expected internal code, got %q", GetCode(err))
	}
}

func TestWrap_NilError(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Fatal("expected nil")
	}
}

func TestPredicates(t *testing.T) {
	if !IsNotFound(NotFound("x")) || IsNotFound(Conflict("x")) {
		t.Fatal("IsNotFound mismatch")
	}
	if !IsConflict(Conflict("x")) {
		t.Fatal("IsConflict mismatch")
	}
	if !IsValidation(ValidationField("email", "bad")) || GetField(ValidationField("email", "bad")) != "email" {
		t.Fatal("IsValidation mismatch")
	}
	if GetCode(errors.New("plain")) != "" {
		t.Fatal("plain errors carry no code")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrCodeNotFound:     http.StatusNotFound,
		ErrCodeConflict:     http.StatusConflict,
		ErrCodeValidation:   http.StatusBadRequest,
		ErrCodeUnauthorized: http.StatusUnauthorized,
		ErrCodeForbidden:    http.StatusForbidden,
		ErrCodeRateLimited:  http.StatusTooManyRequests,
		ErrCodeUnavailable:  http.StatusServiceUnavailable,
		ErrCodeTimeout:      http.StatusGatewayTimeout,
		ErrCodeInternal:     http.StatusInternalServerError,
		"":                  http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := HTTPStatus(code); got != want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", code, got, want)
		}
	}
}
