package ports

import (
	"context"
	"errors"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
)

// ErrDirectoryRecordNotFound is returned when an identity has not been provisioned.
var ErrDirectoryRecordNotFound = errors.New("directory record not found")

// Directory looks up role and status for an identity.
type Directory interface {
	LookupRole(ctx context.Context, userID string) (domainauth.DirectoryRecord, error)
}

// DirectoryAdmin manages directory records. Used by the admin CLI.
type DirectoryAdmin interface {
	Directory
	Upsert(ctx context.Context, rec domainauth.DirectoryRecord) error
	SetStatus(ctx context.Context, userID string, status domainauth.Status) error
}
