package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/ps2ble/bondmgr/api/companion"
)

var (
	warnColor      = color.New(color.FgYellow, color.Bold)
	errorColor     = color.New(color.FgRed, color.Bold)
	nameColor      = color.New(color.Bold)
	connectedColor = color.New(color.FgGreen)
)

// printWarn prints a formatted warning to stderr.
func printWarn(format string, args ...any) {
	warnColor.Fprintln(os.Stderr, "[-] "+fmt.Sprintf(format, args...))
}

// printError prints an error to stderr.
func printError(err error) {
	errorColor.Fprintln(os.Stderr, "[!] "+err.Error())
}

// formatDevice returns a single line description of device.
func formatDevice(device companion.Device) string {
	var sb strings.Builder

	sb.WriteString(nameColor.Sprint(device.DisplayName()))
	fmt.Fprintf(&sb, " (%s) %s %s", device.Appearance.Category(), device.Address, device.AddressType)

	if device.IsConnected {
		sb.WriteString(" " + connectedColor.Sprint("connected"))
	}

	return sb.String()
}
