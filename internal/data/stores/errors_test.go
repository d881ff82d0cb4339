package stores

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCorruptionError_MessageMatch(t *testing.T) {
	assert.True(t, IsCorruptionError(errors.New("database disk image is malformed")))
	assert.True(t, IsCorruptionError(errors.New("file is not a database")))
	assert.False(t, IsCorruptionError(errors.New("no such table: kv_store")))
}

func TestIsBusyError_PlainError(t *testing.T) {
	assert.False(t, IsBusyError(errors.New("timeout")))
}

func TestRecoverFromCorruption_MovesFiles(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "fieldsync.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("garbage"), 0o600))
	require.NoError(t, os.WriteFile(dbPath+"-wal", []byte("wal"), 0o600))

	require.NoError(t, RecoverFromCorruption(dir))

	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "corrupt db should be moved aside")
	_, err = os.Stat(dbPath + "-wal")
	assert.True(t, os.IsNotExist(err), "wal sidecar should be moved aside")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "backups should remain in the data dir")
}

func TestRecoverFromCorruption_NoDatabase(t *testing.T) {
	assert.NoError(t, RecoverFromCorruption(t.TempDir()))
}
