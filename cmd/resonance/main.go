// Command resonance serves and computes listening-history insights.
package main

import (
	"os"

	"github.com/ewilliams-labs/resonance/internal/cli"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(cli.Execute(cli.BuildInfo{Version: version, Commit: commit, Date: date}))
}
