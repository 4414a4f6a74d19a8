package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"qhse_dashboard/internal/config"
	"qhse_dashboard/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settings(t *testing.T, env map[string]string) config.Settings {
	t.Helper()
	s, err := config.Load(func(k string) string { return env[k] })
	require.NoError(t, err)
	return s
}

func TestSheetsOptions(t *testing.T) {
	_, err := SheetsOptions(settings(t, map[string]string{"SHEET_ID": "abc"}))
	assert.ErrorIs(t, err, ErrNoCredentials)

	opts, err := SheetsOptions(settings(t, map[string]string{"SHEET_ID": "abc", "GOOGLE_API_KEY": "key"}))
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	opts, err = SheetsOptions(settings(t, map[string]string{"SHEET_ID": "abc", "GOOGLE_CREDENTIALS_FILE": "creds.json"}))
	require.NoError(t, err)
	assert.Len(t, opts, 1)
}

func TestLoadSchema(t *testing.T) {
	sc, err := LoadSchema(settings(t, map[string]string{"SHEET_ID": "abc"}))
	require.NoError(t, err)
	assert.Equal(t, schema.ProjectNo, sc.Resolve("Project No"))

	path := filepath.Join(t.TempDir(), "fields.yaml")
	require.NoError(t, os.WriteFile(path, []byte("headers:\n  \"Proj #\": projectNo\n"), 0o600))
	sc, err = LoadSchema(settings(t, map[string]string{"SHEET_ID": "abc", "FIELD_MAP_FILE": path}))
	require.NoError(t, err)
	assert.Equal(t, schema.ProjectNo, sc.Resolve("Proj #"))

	_, err = LoadSchema(settings(t, map[string]string{"SHEET_ID": "abc", "FIELD_MAP_FILE": filepath.Join(t.TempDir(), "missing.yaml")}))
	assert.Error(t, err)
}

func TestInitializeClients(t *testing.T) {
	s := settings(t, map[string]string{"SHEET_ID": "abc", "GOOGLE_API_KEY": "key"})
	client, p, err := InitializeClients(context.Background(), s)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Empty(t, p.Snapshot().Data)

	_, _, err = InitializeClients(context.Background(), settings(t, map[string]string{"SHEET_ID": "abc"}))
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestInitializeNotificationClient(t *testing.T) {
	c := InitializeNotificationClient(settings(t, map[string]string{"SHEET_ID": "abc", "NTFY_ENABLED": "true"}))
	assert.True(t, c.Enabled())
}
