package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BirbFetcher/internal/config"
	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/infrastructure/storage"
	"BirbFetcher/internal/logging"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "birbs.db")
	raw := fmt.Sprintf(`
database:
  driver: sqlite
  dsn: %s
storage:
  blobDir: %s
logging:
  level: error
`, dbPath, filepath.Join(dir, "blobs"))

	path := filepath.Join(dir, "birbfetcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	return path, dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedItem(t *testing.T, dbPath string) int64 {
	t.Helper()

	ctx := context.Background()
	db, dialect, err := storage.Open(ctx, config.DatabaseConfig{Driver: storage.DriverSQLite, DSN: dbPath})
	require.NoError(t, err)
	defer db.Close()

	_, err = storage.NewMigrator(db, dialect, logging.Discard()).Migrate(ctx)
	require.NoError(t, err)

	id, err := storage.NewItemRepository(db, dialect).Insert(ctx, domain.NewItem{
		Digest:      domain.SumDigest([]byte("cli")),
		Permalink:   "/r/birbs/comments/cli/",
		SourceURL:   "https://i.redd.it/cli.png",
		ContentType: "image/png",
		Channel:     "birbs",
	})
	require.NoError(t, err)
	return id
}

func TestMigrateCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := execute(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema at version 3 (applied 3, was 0)")

	out, err = execute(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 0")
}

func TestMigrateCommandRejectsBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "birbs.db")
	cfgPath := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database: [unterminated"), 0o600))

	_, err := execute(t, "--config", cfgPath, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
	assert.NoFileExists(t, dbPath)
}

func TestOverrideAndInfoCommands(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	id := seedItem(t, dbPath)
	idArg := fmt.Sprint(id)

	out, err := execute(t, "-c", cfgPath, "ban", idArg)
	require.NoError(t, err)
	assert.Contains(t, out, "is now banned")

	out, err = execute(t, "-c", cfgPath, "info", idArg)
	require.NoError(t, err)
	var info struct {
		ID     int64  `json:"id"`
		State  string `json:"state"`
		Digest string `json:"digest"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "banned", info.State)
	assert.Equal(t, domain.SumDigest([]byte("cli")).Hex(), info.Digest)

	_, err = execute(t, "-c", cfgPath, "verify", idArg)
	require.NoError(t, err)

	out, err = execute(t, "-c", cfgPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 3")
	assert.Contains(t, out, "verified: 1")
	assert.Contains(t, out, "banned:   0")
}

func TestOverrideCommandErrors(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seedItem(t, dbPath)

	_, err := execute(t, "-c", cfgPath, "ban", "abc")
	require.Error(t, err)

	_, err = execute(t, "-c", cfgPath, "verify", "999")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = execute(t, "-c", cfgPath, "ban")
	require.Error(t, err)
}
