package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	"github.com/target/hotelease-portal/internal/service"
)

type accountCreateOptions struct {
	Input service.SignUpInput
}

func parseAccountCreateFlags(args []string) (accountCreateOptions, error) {
	fs := pflag.NewFlagSet("account-create", pflag.ContinueOnError)
	var (
		role string
		opts accountCreateOptions
	)
	fs.StringVar(&opts.Input.Email, "email", "", "Login email")
	fs.StringVar(&opts.Input.Name, "name", "", "Display name")
	fs.StringVar(&opts.Input.Password, "password", "", "Initial password")
	fs.StringVar(&role, "role", string(domainauth.RoleGuest), "Role: guest, staff, admin or superadmin")
	if err := parseFlags(fs, args); err != nil {
		return opts, err
	}
	if strings.TrimSpace(opts.Input.Email) == "" || opts.Input.Password == "" {
		return opts, fmt.Errorf("%w: --email and --password are required", errUsage)
	}
	parsed := domainauth.ParseRole(role)
	if parsed == domainauth.RoleUnauthorized {
		return opts, fmt.Errorf("%w: --role must be one of guest, staff, admin or superadmin", errUsage)
	}
	opts.Input.Role = parsed
	if opts.Input.Name == "" {
		opts.Input.Name = opts.Input.Email
	}
	return opts, nil
}

func runAccountCreate(cmdCtx *commandContext, args []string) error {
	opts, err := parseAccountCreateFlags(args)
	if err != nil {
		return err
	}

	kv, closeFn, err := cmdCtx.openKV(cmdCtx)
	if err != nil {
		return err
	}
	defer closeFn()

	accounts, err := service.NewLocalAccounts(service.LocalAccountsOptions{KV: kv})
	if err != nil {
		return err
	}
	acct, err := accounts.SignUp(cmdCtx.Ctx, opts.Input)
	if errors.Is(err, service.ErrAccountExists) {
		return fmt.Errorf("an account for %s already exists", opts.Input.Email)
	}
	if err != nil {
		return err
	}

	cmdCtx.Logger.Info("local account created", "user_id", acct.UserID, "role", acct.Role)
	return writef(cmdCtx.Out, "created %s (%s) as %s\n", acct.Email, acct.UserID, acct.Role)
}
