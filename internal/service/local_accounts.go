package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	apperrors "github.com/target/hotelease-portal/internal/errors"
	"github.com/target/hotelease-portal/internal/ports"
)

const (
	localAccountKeyPrefix = "account:"
	minPasswordLength     = 8
)

// ErrAccountExists is returned by SignUp when the email is already registered.
var ErrAccountExists = errors.New("account already exists")

// LocalAccount is an offline account usable when the identity service is unreachable.
type LocalAccount struct {
	UserID       string          `json:"user_id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Role         domainauth.Role `json:"role"`
	PasswordHash []byte          `json:"password_hash"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Identity returns the account as an auth identity.
func (a LocalAccount) Identity() domainauth.Identity {
	return domainauth.Identity{UserID: a.UserID, Email: a.Email, Name: a.Name}
}

// SignUpInput carries a new local account.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Role     domainauth.Role // defaults to guest
}

// LocalAccounts stores bcrypt-hashed accounts in the key-value store.
type LocalAccounts struct {
	kv   ports.KeyValueStore
	cost int
	now  func() time.Time
}

// LocalAccountsOptions groups dependencies for LocalAccounts.
type LocalAccountsOptions struct {
	KV         ports.KeyValueStore // Required
	BcryptCost int                 // Optional: defaults to bcrypt.DefaultCost
	Now        func() time.Time
}

// NewLocalAccounts constructs a LocalAccounts service.
func NewLocalAccounts(opts LocalAccountsOptions) (*LocalAccounts, error) {
	if opts.KV == nil {
		return nil, errors.New("KeyValueStore is required")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", opts.BcryptCost)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LocalAccounts{kv: opts.KV, cost: opts.BcryptCost, now: opts.Now}, nil
}

// SignUp registers a new account. Duplicate emails are rejected with ErrAccountExists.
func (s *LocalAccounts) SignUp(ctx context.Context, in SignUpInput) (LocalAccount, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" {
		return LocalAccount{}, apperrors.ValidationField("name", "name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return LocalAccount{}, apperrors.ValidationField("email", "email is invalid")
	}
	if len(in.Password) < minPasswordLength {
		return LocalAccount{}, apperrors.ValidationField("password",
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	role := in.Role
	if role == "" {
		role = domainauth.RoleGuest
	}
	if !role.Valid() || role == domainauth.RoleUnauthorized {
		return LocalAccount{}, apperrors.ValidationField("role", "role is invalid")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return LocalAccount{}, fmt.Errorf("hash password: %w", err)
	}
	acct := LocalAccount{
		UserID:       "local:" + uuid.NewString(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	data, err := json.Marshal(acct)
	if err != nil {
		return LocalAccount{}, fmt.Errorf("marshal account: %w", err)
	}

	created, err := s.kv.SetIfNotExists(ctx, localAccountKeyPrefix+email, data, 0)
	if err != nil {
		return LocalAccount{}, fmt.Errorf("store account: %w", err)
	}
	if !created {
		return LocalAccount{}, ErrAccountExists
	}
	return acct, nil
}

// Validate returns the account when email and password match.
func (s *LocalAccounts) Validate(ctx context.Context, email, password string) (LocalAccount, error) {
	data, err := s.kv.Get(ctx, localAccountKeyPrefix+normalizeEmail(email))
	if err != nil {
		return LocalAccount{}, fmt.Errorf("load account: %w", err)
	}
	if data == nil {
		return LocalAccount{}, ports.ErrInvalidCredentials
	}
	var acct LocalAccount
	if err := json.Unmarshal(data, &acct); err != nil {
		return LocalAccount{}, fmt.Errorf("decode account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return LocalAccount{}, ports.ErrInvalidCredentials
	}
	return acct, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
