// preservica-upload - terminal tool for uploading files and folders to Preservica
package main

import (
	"os"

	"github.com/preservica-tools/preservica-upload/internal/cli"
	"github.com/preservica-tools/preservica-upload/internal/version"
)

// Version information, overridden with -ldflags at build time.
var (
	Version   = "v0.4.0"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
