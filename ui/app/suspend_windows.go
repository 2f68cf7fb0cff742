//go:build windows

package app

import (
	"errors"

	"github.com/gdamore/tcell/v2"
)

func stopProcess(_ tcell.Screen) error {
	return errors.New("suspend is not supported on windows")
}
