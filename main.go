package main

import (
	"os"

	"github.com/conneroisu/domwire/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
