package main

import (
	"os"

	"github.com/ledgerline-systems/supplyscore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
