package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"
)

// ErrLockTimeout is returned when another writer holds a file's lock for
// longer than the configured timeout.
var ErrLockTimeout = errors.Base("timeout waiting for lock")

// FileLock represents a file lock for concurrent access control
type FileLock struct {
	file   *os.File
	path   string
	locked bool
	mu     sync.Mutex
}

// AtomicWriteConfig controls atomic writing behavior
type AtomicWriteConfig struct {
	UseFsync       bool          // Force fsync for durability
	LockTimeout    time.Duration // Max time to wait for file lock
	TempSuffix     string        // Suffix for temporary files
	BackupOriginal bool          // Keep a timestamped .bak copy next to the file
}

// DefaultAtomicConfig provides sensible defaults
func DefaultAtomicConfig() AtomicWriteConfig {
	return AtomicWriteConfig{
		UseFsync:       true,
		LockTimeout:    5 * time.Second,
		TempSuffix:     ".refactory.tmp",
		BackupOriginal: false,
	}
}

// AtomicWriter replaces file contents so that readers see either the old or
// the new bytes, never a mix. The temporary file lives in the target's
// directory so the final rename never crosses filesystems.
type AtomicWriter struct {
	config AtomicWriteConfig
	locks  map[string]*FileLock
	mu     sync.Mutex

	// beforeRename runs after the temp file is complete and before it
	// replaces the target. Tests use it to inject failures.
	beforeRename func(tempPath string) error
}

// NewAtomicWriter creates a new atomic writer
func NewAtomicWriter(config AtomicWriteConfig) *AtomicWriter {
	if config.TempSuffix == "" {
		config.TempSuffix = DefaultAtomicConfig().TempSuffix
	}
	return &AtomicWriter{
		config: config,
		locks:  make(map[string]*FileLock),
	}
}

// WriteFile atomically replaces path with content. On any failure the
// original file is left untouched and the temporary file is removed.
func (aw *AtomicWriter) WriteFile(path string, content []byte) error {
	if err := aw.acquireLock(path); err != nil {
		return errors.Errorf("failed to acquire lock for %s: %w", path, err)
	}
	defer aw.releaseLock(path)

	var fileMode os.FileMode = 0o644
	originalInfo, err := os.Stat(path)
	if err == nil {
		fileMode = originalInfo.Mode().Perm()
	}

	if aw.config.BackupOriginal && err == nil {
		if err := aw.createBackup(path); err != nil {
			return errors.Errorf("failed to create backup: %w", err)
		}
	}

	tempPath := path + aw.config.TempSuffix
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return errors.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tempFile.Write(content); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return errors.Errorf("failed to write content: %w", err)
	}

	if aw.config.UseFsync {
		if err := tempFile.Sync(); err != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return errors.Errorf("failed to sync: %w", err)
		}
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("failed to close temp file: %w", err)
	}

	if aw.beforeRename != nil {
		if err := aw.beforeRename(tempPath); err != nil {
			os.Remove(tempPath)
			return errors.Errorf("failed before rename: %w", err)
		}
	}

	// Atomic rename (the critical atomic operation)
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("failed to atomic rename: %w", err)
	}

	if aw.config.UseFsync {
		syncDir(filepath.Dir(path))
	}
	return nil
}

// syncDir persists the rename itself. Not every platform supports syncing a
// directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

// acquireLock creates path.lock exclusively, waiting up to LockTimeout. Locks
// left behind by dead processes are broken.
func (aw *AtomicWriter) acquireLock(path string) error {
	lockPath := path + ".lock"

	deadline := time.Now().Add(aw.config.LockTimeout)
	for {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			// Write PID to lock file so stale locks can be detected
			fmt.Fprintf(lockFile, "%d\n", os.Getpid())
			lockFile.Sync()

			aw.mu.Lock()
			aw.locks[path] = &FileLock{file: lockFile, path: lockPath, locked: true}
			aw.mu.Unlock()
			return nil
		}

		if !os.IsExist(err) {
			return errors.Errorf("failed to create lock file: %w", err)
		}
		if aw.isLockStale(lockPath) {
			os.Remove(lockPath)
			continue
		}
		if !time.Now().Before(deadline) {
			return errors.Errorf("%w on %s", ErrLockTimeout, path)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// releaseLock releases the file lock
func (aw *AtomicWriter) releaseLock(path string) {
	aw.mu.Lock()
	lock, exists := aw.locks[path]
	delete(aw.locks, path)
	aw.mu.Unlock()

	if !exists {
		return
	}

	lock.mu.Lock()
	defer lock.mu.Unlock()
	if lock.locked {
		lock.file.Close()
		os.Remove(lock.path)
		lock.locked = false
	}
}

// isLockStale checks if a lock file is from a dead process (cross-platform)
func (aw *AtomicWriter) isLockStale(lockPath string) bool {
	content, err := os.ReadFile(lockPath)
	if err != nil {
		// Released between the create attempt and the read; the next
		// attempt will take it.
		return false
	}

	var pid int
	if _, err := fmt.Sscanf(string(content), "%d", &pid); err != nil {
		// The holder may not have written its PID yet.
		info, statErr := os.Stat(lockPath)
		return statErr == nil && time.Since(info.ModTime()) > aw.config.LockTimeout
	}

	return !isProcessAlive(pid)
}

// createBackup creates a backup copy with timestamp
func (aw *AtomicWriter) createBackup(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	timestamp := time.Now().Format("20060102-150405")
	return os.WriteFile(fmt.Sprintf("%s.bak.%s", path, timestamp), content, 0o644)
}

// Cleanup removes all locks (call on shutdown)
func (aw *AtomicWriter) Cleanup() {
	aw.mu.Lock()
	paths := make([]string, 0, len(aw.locks))
	for path := range aw.locks {
		paths = append(paths, path)
	}
	aw.mu.Unlock()

	for _, path := range paths {
		aw.releaseLock(path)
	}
}
