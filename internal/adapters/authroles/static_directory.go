// Package authroles provides role directory adapters that do not need a database.
package authroles

import (
	"context"
	"fmt"
	"strings"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/ports"
)

var _ ports.Directory = StaticDirectory{}

// StaticDirectory maps user ids to roles from configuration.
// Used with DIRECTORY_BACKEND=static for development and single-tenant deployments.
type StaticDirectory struct {
	records map[string]domainauth.DirectoryRecord
}

// NewStaticDirectory builds a directory from "user_id:role[:status]" entries.
// Later entries for the same user id win.
func NewStaticDirectory(entries []string) (StaticDirectory, error) {
	d := StaticDirectory{records: make(map[string]domainauth.DirectoryRecord, len(entries))}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		rec, err := parseEntry(raw)
		if err != nil {
			return StaticDirectory{}, err
		}
		d.records[rec.UserID] = rec
	}
	return d, nil
}

func parseEntry(raw string) (domainauth.DirectoryRecord, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return domainauth.DirectoryRecord{}, fmt.Errorf("invalid directory entry %q (want user_id:role[:status])", raw)
	}
	userID := strings.TrimSpace(parts[0])
	if userID == "" {
		return domainauth.DirectoryRecord{}, fmt.Errorf("invalid directory entry %q: empty user id", raw)
	}

	var role domainauth.Role
	if err := role.UnmarshalText([]byte(parts[1])); err != nil {
		return domainauth.DirectoryRecord{}, fmt.Errorf("directory entry %q: %w", raw, err)
	}

	status := domainauth.StatusActive
	if len(parts) == 3 {
		switch s := domainauth.Status(strings.ToLower(strings.TrimSpace(parts[2]))); s {
		case domainauth.StatusActive, domainauth.StatusSuspended:
			status = s
		default:
			return domainauth.DirectoryRecord{}, fmt.Errorf("directory entry %q: invalid status %q", raw, parts[2])
		}
	}

	return domainauth.DirectoryRecord{UserID: userID, Role: role, Status: status}, nil
}

// LookupRole returns the configured record or ports.ErrDirectoryRecordNotFound.
func (d StaticDirectory) LookupRole(_ context.Context, userID string) (domainauth.DirectoryRecord, error) {
	rec, ok := d.records[userID]
	if !ok {
		return domainauth.DirectoryRecord{}, ports.ErrDirectoryRecordNotFound
	}
	return rec, nil
}

// Len returns the number of configured records.
func (d StaticDirectory) Len() int { return len(d.records) }
