package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/hotelease-portal/config"
	domainauth "github.com/target/hotelease-portal/internal/domain/auth"
	authmocks "github.com/target/hotelease-portal/internal/mocks/auth"
	"github.com/target/hotelease-portal/internal/ports"
)

func newTestContext(dir *authmocks.MemoryDirectory, kv *authmocks.MemoryKV) (*commandContext, *bytes.Buffer) {
	var out bytes.Buffer
	cmdCtx := newCommandContext(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), config.AppConfig{}, &out)
	cmdCtx.openDirectory = func(*commandContext) (ports.DirectoryAdmin, func(), error) {
		return dir, func() {}, nil
	}
	cmdCtx.openKV = func(*commandContext) (ports.KeyValueStore, func(), error) {
		return kv, func() {}, nil
	}
	return cmdCtx, &out
}

func TestPrintUsageListsCommandsSorted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))

	out := buf.String()
	assert.Contains(t, out, "Usage: hotelease-admin")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("account-create")), bytes.Index(buf.Bytes(), []byte("migrate")))
	for name := range commands() {
		assert.Contains(t, out, name)
	}
}

func TestDirectoryCommands(t *testing.T) {
	dir := authmocks.NewMemoryDirectory()
	cmdCtx, out := newTestContext(dir, authmocks.NewMemoryKV())

	require.NoError(t, runDirectorySet(cmdCtx, []string{"--id", "z123", "--role", "Admin", "--name", "Zed"}))
	rec, err := dir.LookupRole(context.Background(), "z123")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, rec.Role)
	assert.Equal(t, domainauth.StatusActive, rec.Status)

	require.NoError(t, runDirectorySuspend(cmdCtx, []string{"--id=z123"}))
	rec, err = dir.LookupRole(context.Background(), "z123")
	require.NoError(t, err)
	assert.True(t, rec.Suspended())

	out.Reset()
	require.NoError(t, runDirectoryGet(cmdCtx, []string{"--id", "z123"}))
	assert.Contains(t, out.String(), "USER ID")
	assert.Contains(t, out.String(), "suspended")

	require.NoError(t, runDirectoryActivate(cmdCtx, []string{"--id", "z123"}))
	rec, err = dir.LookupRole(context.Background(), "z123")
	require.NoError(t, err)
	assert.False(t, rec.Suspended())

	err = runDirectoryGet(cmdCtx, []string{"--id", "nobody"})
	require.ErrorContains(t, err, "no directory record")
	err = runDirectorySuspend(cmdCtx, []string{"--id", "nobody"})
	require.ErrorContains(t, err, "no directory record")
}

func TestDirectorySetFlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing user", args: []string{"--role", "staff"}},
		{name: "unknown role", args: []string{"--id", "a", "--role", "pilot"}},
		{name: "unknown status", args: []string{"--id", "a", "--role", "staff", "--status", "gone"}},
		{name: "unknown flag", args: []string{"--id", "a", "--role", "staff", "--colour", "red"}},
		{name: "stray argument", args: []string{"--id", "a", "--role", "staff", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDirectorySetFlags(tt.args)
			require.ErrorIs(t, err, errUsage)
		})
	}
}

func TestAccountCreate(t *testing.T) {
	kv := authmocks.NewMemoryKV()
	cmdCtx, out := newTestContext(authmocks.NewMemoryDirectory(), kv)

	args := []string{"--email", "Desk@Example.com", "--password", "front-desk-1", "--role", "staff"}
	require.NoError(t, runAccountCreate(cmdCtx, args))
	assert.Contains(t, out.String(), "created desk@example.com")
	assert.Contains(t, out.String(), "as staff")

	err := runAccountCreate(cmdCtx, args)
	require.ErrorContains(t, err, "already exists")

	_, err = parseAccountCreateFlags([]string{"--email", "a@example.com"})
	require.ErrorIs(t, err, errUsage)
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultCommandTimeout, opts.Timeout)

	_, err = parseMigrateFlags([]string{"--timeout", "0s"})
	require.ErrorIs(t, err, errUsage)
}
