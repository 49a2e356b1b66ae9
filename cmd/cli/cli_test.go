package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeyLifecycle(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, "key", "ensure", "--keyring-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated key")

	out, err = runCLI(t, "key", "ensure", "--keyring-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	out, err = runCLI(t, "key", "list", "--json", "--keyring-dir", dir)
	require.NoError(t, err)
	var keys []models.KeyMetadata
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	require.Len(t, keys, 1)
	assert.Equal(t, constants.KeyStatusActive, keys[0].Status)
	id := keys[0].ID.String()

	out, err = runCLI(t, "key", "list", "--keyring-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, id)

	_, err = runCLI(t, "key", "revoke", id, "--reason", "leaked", "--keyring-dir", dir)
	require.NoError(t, err)
	out, err = runCLI(t, "key", "list", "--keyring-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "revoked")
	assert.Contains(t, out, "leaked")

	_, err = runCLI(t, "key", "purge", id, "--keyring-dir", dir)
	assert.Error(t, err, "purge needs --yes")

	_, err = runCLI(t, "key", "purge", id, "--yes", "--keyring-dir", dir)
	require.NoError(t, err)
	out, err = runCLI(t, "key", "list", "--json", "--keyring-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestKeyGenerate_InvalidInput(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, "key", "generate", "--activates-at", "tomorrow", "--keyring-dir", dir)
	assert.Error(t, err)

	_, err = runCLI(t, "key", "revoke", "not-a-uuid", "--keyring-dir", dir)
	assert.True(t, errors.IsKind(err, errors.KindInvalidConfig))
}

func TestTicketIssueAndInspect(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, "ticket", "issue", "--email", "alice@example.com", "--keyring-dir", dir)
	assert.True(t, errors.IsKind(err, errors.KindNoKeyAvailable), "empty key ring cannot issue")

	_, err = runCLI(t, "key", "generate", "--keyring-dir", dir)
	require.NoError(t, err)

	out, err := runCLI(t, "ticket", "issue", "--email", "alice@example.com", "--persistent", "--keyring-dir", dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Set-Cookie: "+constants.DefaultCookieName+"="))
	assert.Contains(t, out, "HttpOnly")

	value, err := runCLI(t, "ticket", "issue", "--email", "alice@example.com", "--value-only", "--keyring-dir", dir)
	require.NoError(t, err)
	value = strings.TrimSpace(value)

	out, err = runCLI(t, "ticket", "inspect", value, "--keyring-dir", dir)
	require.NoError(t, err)
	var report inspection
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Valid)
	assert.NotEmpty(t, report.KeyID)
	require.NotNil(t, report.Principal)
	assert.Equal(t, "alice@example.com", report.Principal.Email)

	// a different key ring does not know the key
	out, err = runCLI(t, "ticket", "inspect", value, "--keyring-dir", t.TempDir())
	require.NoError(t, err)
	report = inspection{}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Valid)
	assert.Equal(t, string(errors.KindUnknownKeyVersion), report.Error)

	_, err = runCLI(t, "ticket", "inspect", "%%%", "--keyring-dir", dir)
	assert.True(t, errors.IsKind(err, errors.KindMalformedCookie))
}
