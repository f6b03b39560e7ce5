// Package main provides the gradepipe CLI.
package main

import (
	"os"

	"github.com/haasr/batch-grades-processing/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
