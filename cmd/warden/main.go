package main

import (
	"os"

	"github.com/faucetdb/warden/cmd/warden/cli"
)

// Set via -ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(version, commit, date); err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
