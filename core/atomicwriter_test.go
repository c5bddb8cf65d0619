package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAtomicConfig(t *testing.T) {
	config := DefaultAtomicConfig()

	assert.Equal(t, ".refactory.tmp", config.TempSuffix)
	assert.False(t, config.BackupOriginal)
	assert.True(t, config.UseFsync)
	assert.Equal(t, 5*time.Second, config.LockTimeout)
}

func TestNewAtomicWriter_DefaultsSuffix(t *testing.T) {
	writer := NewAtomicWriter(AtomicWriteConfig{})
	assert.Equal(t, ".refactory.tmp", writer.config.TempSuffix)
	assert.NotNil(t, writer.locks)
}

func TestAtomicWriter_WriteFile(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "main.go")
	require.NoError(t, os.WriteFile(testFile, []byte("package old\n"), 0o600))

	writer := NewAtomicWriter(DefaultAtomicConfig())
	require.NoError(t, writer.WriteFile(testFile, []byte("package main\n")))

	got, err := os.ReadFile(testFile)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(got))

	info, err := os.Stat(testFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "permissions are preserved")

	assert.NoFileExists(t, testFile+".refactory.tmp")
	assert.NoFileExists(t, testFile+".lock")
}

func TestAtomicWriter_CreatesNewFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "new.txt")

	writer := NewAtomicWriter(DefaultAtomicConfig())
	require.NoError(t, writer.WriteFile(testFile, []byte("hello")))

	got, err := os.ReadFile(testFile)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestAtomicWriter_FailedRenameLeavesOriginal(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "app.py")
	original := []byte("def foo():\n    return 1\n")
	require.NoError(t, os.WriteFile(testFile, original, 0o644))

	writer := NewAtomicWriter(DefaultAtomicConfig())
	injected := errors.New("disk full")
	var sawTemp bool
	writer.beforeRename = func(tempPath string) error {
		content, err := os.ReadFile(tempPath)
		sawTemp = err == nil && string(content) == "def bar():\n    return 1\n"
		return injected
	}

	err := writer.WriteFile(testFile, []byte("def bar():\n    return 1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, injected)
	assert.True(t, sawTemp, "temp file is complete before the rename step")

	got, readErr := os.ReadFile(testFile)
	require.NoError(t, readErr)
	assert.Equal(t, original, got, "original bytes are untouched")

	entries, readErr := os.ReadDir(tempDir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1, "temp and lock files are removed")
	assert.Equal(t, "app.py", entries[0].Name())
}

func TestAtomicWriter_MissingDirectory(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "missing", "file.txt")

	writer := NewAtomicWriter(DefaultAtomicConfig())
	assert.Error(t, writer.WriteFile(testFile, []byte("x")))
}

func TestAtomicWriter_Backup(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "file.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("before"), 0o644))

	config := DefaultAtomicConfig()
	config.BackupOriginal = true
	writer := NewAtomicWriter(config)
	require.NoError(t, writer.WriteFile(testFile, []byte("after")))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)

	var backup string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "file.txt.bak.") {
			backup = filepath.Join(tempDir, entry.Name())
		}
	}
	require.NotEmpty(t, backup)

	got, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "before", string(got))
}

func TestAtomicWriter_ConcurrentWritersSameFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "shared.txt")
	writer := NewAtomicWriter(DefaultAtomicConfig())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = writer.WriteFile(testFile, fmt.Appendf(nil, "writer-%d", i))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := os.ReadFile(testFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "writer-"), "content is one complete write: %q", got)
	assert.NoFileExists(t, testFile+".lock")
}

func TestAtomicWriter_Cleanup(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "held.txt")
	writer := NewAtomicWriter(DefaultAtomicConfig())

	require.NoError(t, writer.acquireLock(testFile))
	assert.FileExists(t, testFile+".lock")

	writer.Cleanup()
	assert.NoFileExists(t, testFile+".lock")
	assert.Empty(t, writer.locks)
}
