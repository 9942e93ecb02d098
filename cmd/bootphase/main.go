package main

import (
	"os"

	"github.com/mkock/bootphase/internal/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
