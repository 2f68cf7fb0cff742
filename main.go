package main

import (
	"os"

	"github.com/ps2ble/bondmgr/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
