package main

import (
	"os"

	"github.com/forgemap/forgemap/cmd/forgemap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
