//go:build !windows

package app

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sys/unix"
)

// stopProcess hands the terminal back to the shell and stops the
// process with SIGSTOP. It returns once the shell resumes the process.
func stopProcess(screen tcell.Screen) error {
	if err := screen.Suspend(); err != nil {
		return fmt.Errorf("release terminal: %w", err)
	}

	stopErr := unix.Kill(unix.Getpid(), unix.SIGSTOP)

	if err := screen.Resume(); err != nil {
		return fmt.Errorf("resume terminal: %w", err)
	}

	return stopErr
}
