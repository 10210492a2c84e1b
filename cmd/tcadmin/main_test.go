package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

// writeConfig points the tool at a fresh database with one bootstrap admin.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "database:\n  path: " + filepath.Join(dir, "tc.db") + "\n" +
		"auth:\n  bcrypt_cost: 4\n  bootstrap:\n    - user_id: admin\n      password: admin-password\n      level: admin\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// run executes one tcadmin invocation and returns its stdout.
func run(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	argv := append([]string{"tcadmin", "--config", configPath}, args...)
	err := newApp(strings.NewReader(stdin), &out, &errOut).Run(context.Background(), argv)
	return out.String(), err
}

func listedUsers(t *testing.T, configPath string) []string {
	t.Helper()
	out, err := run(t, configPath, "", "user", "list")
	require.NoError(t, err)
	var users []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		users = append(users, strings.Fields(line)[0])
	}
	return users
}

// =============================================================================
// CREDENTIAL RESET
// =============================================================================

func TestUserCommands_IgnoreConfiguredReset(t *testing.T) {
	// GIVEN: the reset switch is on in the environment
	cfg := writeConfig(t)
	t.Setenv("TC_RESET_CREDENTIALS", "true")

	// WHEN: an account is added and the accounts are listed afterwards
	out, err := run(t, cfg, "", "user", "add", "--id", "ops", "--password", "ops-password")
	require.NoError(t, err)
	assert.Contains(t, out, "created ops (user)")

	_, err = run(t, cfg, "", "tables")
	require.NoError(t, err)

	// THEN: the new account survives every later command
	assert.Equal(t, []string{"admin", "ops"}, listedUsers(t, cfg))
}

func TestMigrate_ResetCredentialsFlag(t *testing.T) {
	// GIVEN: an extra account next to the bootstrap admin
	cfg := writeConfig(t)
	_, err := run(t, cfg, "", "user", "add", "--id", "ops", "--password", "ops-password")
	require.NoError(t, err)

	// WHEN: migrate runs without the flag
	out, err := run(t, cfg, "", "migrate")
	require.NoError(t, err)
	assert.NotContains(t, out, "credentials reset")

	// THEN: nothing is dropped
	assert.Equal(t, []string{"admin", "ops"}, listedUsers(t, cfg))

	// WHEN: it runs with --reset-credentials
	out, err = run(t, cfg, "", "migrate", "--reset-credentials")
	require.NoError(t, err)
	assert.Contains(t, out, "credentials reset, 1 bootstrap account(s) seeded")

	// THEN: only the bootstrap account remains
	assert.Equal(t, []string{"admin"}, listedUsers(t, cfg))
}

// =============================================================================
// PASSWORDS FROM STDIN
// =============================================================================

func TestUserAdd_ReadsPasswordFromStdin(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "from-stdin\n", "user", "add", "--id", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "created ops")

	out, err = run(t, cfg, "rotated\r\n", "user", "passwd", "--id", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "password of ops updated")

	_, err = run(t, cfg, "", "user", "add", "--id", "empty")
	assert.Error(t, err, "an empty stdin is not a password")
	assert.Equal(t, []string{"admin", "ops"}, listedUsers(t, cfg))
}
