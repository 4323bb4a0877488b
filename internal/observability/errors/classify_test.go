package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/target/hotelease-portal/internal/ports"
)

type lookupError struct{}

func (*lookupError) Error() string { return "lookup" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: fmt.Errorf("resolve: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "identity outage", err: fmt.Errorf("sign in: %w", ports.ErrIdentityUnavailable), want: "identity_unavailable"},
		{name: "missing record", err: fmt.Errorf("lookup u1: %w", ports.ErrDirectoryRecordNotFound), want: "directory_not_found"},
		{name: "plain", err: goerrors.New("x"), want: "errors_errorstring"},
		{name: "typed", err: fmt.Errorf("wrap: %w", &lookupError{}), want: "errors_lookuperror"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
