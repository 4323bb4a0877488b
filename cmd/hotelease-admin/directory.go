package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/ports"
)

type directoryGetOptions struct {
	UserID string
}

type directorySetOptions struct {
	Record domainauth.DirectoryRecord
}

func requireUserID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: --id is required", errUsage)
	}
	return id, nil
}

func parseDirectoryGetFlags(name string, args []string) (directoryGetOptions, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	var opts directoryGetOptions
	fs.StringVar(&opts.UserID, "id", "", "Directory key (OIDC claim value or local account id)")
	if err := parseFlags(fs, args); err != nil {
		return opts, err
	}
	id, err := requireUserID(opts.UserID)
	opts.UserID = id
	return opts, err
}

func parseDirectorySetFlags(args []string) (directorySetOptions, error) {
	fs := pflag.NewFlagSet("directory-set", pflag.ContinueOnError)
	var (
		userID, role, status string
		opts                 directorySetOptions
	)
	fs.StringVar(&userID, "id", "", "Directory key (OIDC claim value or local account id)")
	fs.StringVar(&role, "role", "", "Role: guest, staff, admin or superadmin")
	fs.StringVar(&status, "status", string(domainauth.StatusActive), "Status: active or suspended")
	fs.StringVar(&opts.Record.Name, "name", "", "Display name")
	fs.StringVar(&opts.Record.Email, "email", "", "Contact email")
	if err := parseFlags(fs, args); err != nil {
		return opts, err
	}

	id, err := requireUserID(userID)
	if err != nil {
		return opts, err
	}
	opts.Record.UserID = id

	parsed := domainauth.ParseRole(role)
	if parsed == domainauth.RoleUnauthorized {
		return opts, fmt.Errorf("%w: --role must be one of guest, staff, admin or superadmin", errUsage)
	}
	opts.Record.Role = parsed

	switch s := domainauth.Status(strings.ToLower(strings.TrimSpace(status))); s {
	case domainauth.StatusActive, domainauth.StatusSuspended:
		opts.Record.Status = s
	default:
		return opts, fmt.Errorf("%w: --status must be active or suspended", errUsage)
	}
	return opts, nil
}

func withDirectory(cmdCtx *commandContext, fn func(dir ports.DirectoryAdmin) error) error {
	dir, closeFn, err := cmdCtx.openDirectory(cmdCtx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(dir)
}

func runDirectoryGet(cmdCtx *commandContext, args []string) error {
	opts, err := parseDirectoryGetFlags("directory-get", args)
	if err != nil {
		return err
	}
	return withDirectory(cmdCtx, func(dir ports.DirectoryAdmin) error {
		rec, lookupErr := dir.LookupRole(cmdCtx.Ctx, opts.UserID)
		if errors.Is(lookupErr, ports.ErrDirectoryRecordNotFound) {
			return fmt.Errorf("no directory record for %q", opts.UserID)
		}
		if lookupErr != nil {
			return fmt.Errorf("lookup %q: %w", opts.UserID, lookupErr)
		}
		return printRecord(cmdCtx, rec)
	})
}

func runDirectorySet(cmdCtx *commandContext, args []string) error {
	opts, err := parseDirectorySetFlags(args)
	if err != nil {
		return err
	}
	return withDirectory(cmdCtx, func(dir ports.DirectoryAdmin) error {
		if upsertErr := dir.Upsert(cmdCtx.Ctx, opts.Record); upsertErr != nil {
			return upsertErr
		}
		cmdCtx.Logger.Info("directory record saved", "user_id", opts.Record.UserID, "role", opts.Record.Role)
		return printRecord(cmdCtx, opts.Record)
	})
}

func runDirectorySuspend(cmdCtx *commandContext, args []string) error {
	return setDirectoryStatus(cmdCtx, "directory-suspend", args, domainauth.StatusSuspended)
}

func runDirectoryActivate(cmdCtx *commandContext, args []string) error {
	return setDirectoryStatus(cmdCtx, "directory-activate", args, domainauth.StatusActive)
}

func setDirectoryStatus(cmdCtx *commandContext, name string, args []string, status domainauth.Status) error {
	opts, err := parseDirectoryGetFlags(name, args)
	if err != nil {
		return err
	}
	return withDirectory(cmdCtx, func(dir ports.DirectoryAdmin) error {
		if setErr := dir.SetStatus(cmdCtx.Ctx, opts.UserID, status); setErr != nil {
			if errors.Is(setErr, ports.ErrDirectoryRecordNotFound) {
				return fmt.Errorf("no directory record for %q", opts.UserID)
			}
			return setErr
		}
		cmdCtx.Logger.Info("directory status changed", "user_id", opts.UserID, "status", status)
		return writef(cmdCtx.Out, "%s is now %s\n", opts.UserID, status)
	})
}

func printRecord(cmdCtx *commandContext, rec domainauth.DirectoryRecord) error {
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "USER ID\tROLE\tSTATUS\tNAME\tEMAIL"); err != nil {
		return fmt.Errorf("write directory header row: %w", err)
	}
	if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n", rec.UserID, rec.Role, rec.Status, rec.Name, rec.Email); err != nil {
		return fmt.Errorf("write directory row: %w", err)
	}
	return tw.Flush()
}
