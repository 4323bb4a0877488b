package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/hotelease-portal/internal/data/pgxutil"
	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	apperrors "github.com/target/hotelease-portal/internal/errors"
	"github.com/target/hotelease-portal/internal/ports"
)

var _ ports.DirectoryAdmin = (*DirectoryRepo)(nil)

const directoryLookupQuery = `
	SELECT id, role, status, name, COALESCE(email, '') AS email
	FROM app_users
	WHERE id = $1`

// directoryRow mirrors the app_users columns read by LookupRole.
type directoryRow struct {
	ID     string `db:"id"`
	Role   string `db:"role"`
	Status string `db:"status"`
	Name   string `db:"name"`
	Email  string `db:"email"`
}

// DirectoryRepo provides role directory operations backed by the app_users table.
type DirectoryRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewDirectoryRepo creates a new DirectoryRepo with real time provider.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo {
	return &DirectoryRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewDirectoryRepoWithTimeProvider creates a new DirectoryRepo with a custom time provider (useful for tests).
func NewDirectoryRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *DirectoryRepo {
	return &DirectoryRepo{DB: db, timeProvider: tp}
}

// LookupRole returns the directory record for userID or ports.ErrDirectoryRecordNotFound.
func (r *DirectoryRepo) LookupRole(ctx context.Context, userID string) (domainauth.DirectoryRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return domainauth.DirectoryRecord{}, ports.ErrDirectoryRecordNotFound
	}

	var row directoryRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, directoryLookupQuery, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[directoryRow])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domainauth.DirectoryRecord{}, ports.ErrDirectoryRecordNotFound
	}
	if err != nil {
		return domainauth.DirectoryRecord{}, fmt.Errorf("lookup directory record: %w", apperrors.MapDBError(err))
	}

	return domainauth.DirectoryRecord{
		UserID: row.ID,
		Role:   domainauth.ParseRole(row.Role),
		Status: parseStatus(row.Status),
		Name:   row.Name,
		Email:  row.Email,
	}, nil
}

// Upsert creates or replaces a directory record.
func (r *DirectoryRepo) Upsert(ctx context.Context, rec domainauth.DirectoryRecord) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return apperrors.ValidationField("id", "user id is required")
	}
	if rec.Role == domainauth.RoleUnauthorized || !rec.Role.Valid() {
		return apperrors.ValidationField("role", "role must be one of guest, staff, admin or superadmin")
	}
	if rec.Status == "" {
		rec.Status = domainauth.StatusActive
	}

	var email any
	if e := strings.TrimSpace(rec.Email); e != "" {
		email = e
	}
	now := r.timeProvider.Now().UTC()

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO app_users (id, role, status, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (id) DO UPDATE SET
				role = EXCLUDED.role,
				status = EXCLUDED.status,
				name = EXCLUDED.name,
				email = EXCLUDED.email,
				updated_at = EXCLUDED.updated_at`,
			rec.UserID, string(rec.Role), string(rec.Status), rec.Name, email, now,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert directory record: %w", apperrors.MapDBError(err))
	}
	return nil
}

// SetStatus changes the status of an existing record.
func (r *DirectoryRepo) SetStatus(ctx context.Context, userID string, status domainauth.Status) error {
	if status != domainauth.StatusActive && status != domainauth.StatusSuspended {
		return apperrors.ValidationField("status", "status must be active or suspended")
	}

	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx,
			`UPDATE app_users SET status = $2, updated_at = $3 WHERE id = $1`,
			userID, string(status), r.timeProvider.Now().UTC(),
		)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("set directory status: %w", apperrors.MapDBError(err))
	}
	if affected == 0 {
		return ports.ErrDirectoryRecordNotFound
	}
	return nil
}

func parseStatus(s string) domainauth.Status {
	if domainauth.Status(strings.ToLower(strings.TrimSpace(s))) == domainauth.StatusSuspended {
		return domainauth.StatusSuspended
	}
	return domainauth.StatusActive
}
