//go:build !windows

package core

import (
	"errors"
	"syscall"
)

// isProcessAlive sends pid signal 0. EPERM means the process exists
// but belongs to another user, so its lock is still held.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
