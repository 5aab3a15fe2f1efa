package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/deepsight-client/internal/apitest"
	"github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/sessions/filestore"
	"github.com/jrsteele09/deepsight-client/token"
	"github.com/jrsteele09/deepsight-client/token/tokentest"
	"github.com/stretchr/testify/require"
)

type cliFixture struct {
	server *apitest.Server
	dir    string
}

func setupCLI(t *testing.T) *cliFixture {
	t.Helper()

	srv := apitest.NewServer(t)
	srv.Config(t)

	dir := t.TempDir()
	t.Setenv("DEEPSIGHT_CONFIG", "")
	t.Setenv("DEEPSIGHT_STORE", "file")
	t.Setenv("DEEPSIGHT_STORE_PASSPHRASE", "")
	t.Setenv("DEEPSIGHT_LOG_LEVEL", "error")
	t.Setenv("DEEPSIGHT_STORE_PATH", "")
	t.Setenv("FOLDER", dir)
	return &cliFixture{server: srv, dir: dir}
}

// exec runs one CLI invocation and returns its stdout.
func (f *cliFixture) exec(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func TestLoginStatusLogout(t *testing.T) {
	f := setupCLI(t)

	out, err := f.exec(t, "", "status")
	require.ErrorIs(t, err, errNotAuthenticated)
	require.Contains(t, out, "Not authenticated")

	out, err = f.exec(t, "", "login", "-u", "ada", "-p", "Str0ng!pass")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as ada")
	require.FileExists(t, filepath.Join(f.dir, "session.json"))

	out, err = f.exec(t, "", "status", "--verify")
	require.NoError(t, err)
	require.Contains(t, out, "Authenticated")
	require.Contains(t, out, "Token expires")
	require.Contains(t, out, "Token verified by the server")

	out, err = f.exec(t, "", "profile")
	require.NoError(t, err)
	require.Contains(t, out, "Ada Lovelace <ada@example.com>")

	out, err = f.exec(t, "", "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Logged out")

	_, err = f.exec(t, "", "status")
	require.ErrorIs(t, err, errNotAuthenticated)
}

func TestStatusRefreshesAcrossInvocations(t *testing.T) {
	f := setupCLI(t)
	ctx := context.Background()

	_, err := f.exec(t, "", "login", "-u", "ada", "-p", "Str0ng!pass")
	require.NoError(t, err)

	// Replace the token with an expired one, keeping the stored session cookies.
	store := filestore.New(filepath.Join(f.dir, "session.json"), "")
	require.NoError(t, store.Save(ctx, tokentest.Mint(t, time.Now().Add(-time.Minute))))

	out, err := f.exec(t, "", "status")
	require.NoError(t, err)
	require.Contains(t, out, "Authenticated")
	require.Contains(t, out, "Token expires")
	require.Equal(t, 1, f.server.Calls(apitest.CallRefresh))

	refreshed, err := store.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, token.CheckExpiry(refreshed, time.Now()))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	prodLogger := newLogger(&buf, "PROD", "warn")
	prodLogger.Warn().Str("component", "session").Msg("Session expired")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "session", line["component"])
	require.Equal(t, "Session expired", line["message"])

	buf.Reset()
	devLogger := newLogger(&buf, "DEV", "warn")
	devLogger.Info().Msg("Session active")
	require.Empty(t, buf.String(), "below the configured level")

	devLogger = newLogger(&buf, "DEV", "warn")
	devLogger.Warn().Msg("Session expired")
	require.Contains(t, buf.String(), "Session expired")
	require.False(t, json.Valid(buf.Bytes()), "console output in DEV")
}

func TestWatchStopsWhenSessionEnds(t *testing.T) {
	f := setupCLI(t)

	out, err := f.exec(t, "", "watch", "--interval", "10ms")
	require.ErrorIs(t, err, errNotAuthenticated)
	require.NotEmpty(t, out, "banner is printed")
}

func TestLoginPrompts(t *testing.T) {
	f := setupCLI(t)

	out, err := f.exec(t, "ada\nStr0ng!pass\n", "login")
	require.NoError(t, err)
	require.Contains(t, out, "Username: ")
	require.Contains(t, out, "Password: ")
	require.Contains(t, out, "Logged in as ada")
}

func TestLoginValidation(t *testing.T) {
	f := setupCLI(t)

	out, err := f.exec(t, "", "login", "-u", "ada", "-p", "weakpass")
	require.ErrorIs(t, err, errors.ErrIncorrectPassword)
	require.Contains(t, out, "Incorrect password")
	require.NotContains(t, err.Error(), "weak", "password rules are not disclosed at login")
	require.Equal(t, 0, f.server.Calls(apitest.CallLogin), "invalid forms are not sent")

	_, err = f.exec(t, "", "login", "-u", "ada", "-p", "Wr0ng!pass")
	require.Error(t, err)
	require.Contains(t, err.Error(), "No active account found")
	require.Equal(t, 1, f.server.Calls(apitest.CallLogin))
}

func TestRegister(t *testing.T) {
	f := setupCLI(t)

	args := []string{"register", "--email", "grace@example.com", "--username", "grace", "--password", "C0bol!rocks", "--first-name", "Grace"}

	_, err := f.exec(t, "", append(args, "--confirm-password", "C0bol!rock")...)
	require.ErrorIs(t, err, errors.ErrPasswordMismatch)

	out, err := f.exec(t, "", append(args, "--confirm-password", "C0bol!rocks")...)
	require.NoError(t, err)
	require.Contains(t, out, "User registered successfully")

	_, err = f.exec(t, "", "login", "-u", "grace", "-p", "C0bol!rocks")
	require.NoError(t, err)
}

func TestImageCommands(t *testing.T) {
	f := setupCLI(t)
	_, err := f.exec(t, "", "login", "-u", "ada", "-p", "Str0ng!pass")
	require.NoError(t, err)

	src := filepath.Join(f.dir, "cat.png")
	require.NoError(t, os.WriteFile(src, []byte("png-bytes"), 0o600))

	out, err := f.exec(t, "", "images", "upload", src)
	require.NoError(t, err)
	require.Contains(t, out, "Uploaded cat.png as image 1")

	out, err = f.exec(t, "", "images", "list")
	require.NoError(t, err)
	require.Contains(t, out, "cat.png")

	out, err = f.exec(t, "", "models", "list")
	require.NoError(t, err)
	require.Contains(t, out, "EdgeNet")

	out, err = f.exec(t, "", "models", "show", "2")
	require.NoError(t, err)
	require.Contains(t, out, "UpScaler (v2.1)")

	dst := filepath.Join(f.dir, "out.png")
	out, err = f.exec(t, "", "process", "1", "1", "-o", dst)
	require.NoError(t, err)
	require.Contains(t, out, "Wrote")
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "EdgeNet:png-bytes", string(data))

	out, err = f.exec(t, "", "processed", "get", "1")
	require.NoError(t, err)
	require.Equal(t, "EdgeNet:png-bytes", out)

	_, err = f.exec(t, "", "processed", "delete", "1")
	require.NoError(t, err)

	_, err = f.exec(t, "", "images", "delete", "1")
	require.NoError(t, err)

	_, err = f.exec(t, "", "images", "get", "1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Image not found")

	_, err = f.exec(t, "", "images", "get", "abc")
	require.EqualError(t, err, `invalid id "abc"`)
}

func TestSettingsCommand(t *testing.T) {
	f := setupCLI(t)
	_, err := f.exec(t, "", "login", "-u", "ada", "-p", "Str0ng!pass")
	require.NoError(t, err)

	out, err := f.exec(t, "", "settings", "--theme", "dark")
	require.NoError(t, err)
	require.Contains(t, out, "Theme: dark")

	_, err = f.exec(t, "", "settings", "--theme", "neon")
	require.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestHealthAndStoreSelection(t *testing.T) {
	f := setupCLI(t)

	out, err := f.exec(t, "", "health")
	require.NoError(t, err)
	require.Contains(t, out, "API is healthy!")

	_, err = f.exec(t, "", "--store", "etcd", "health")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown token store "etcd"`)

	t.Setenv("REDIS_ADDR", "127.0.0.1:1")
	_, err = f.exec(t, "", "--store", "redis", "health")
	require.ErrorIs(t, err, errors.ErrStoreUnavailable)
}
