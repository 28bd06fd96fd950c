// Command dataanchor anchors files to a ledger and retrieves them.
package main

import (
	"os"

	"github.com/meigma/dataanchor/cmd/dataanchor/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
