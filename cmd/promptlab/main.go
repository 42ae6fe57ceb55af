package main

import "github.com/aescanero/promptlab/internal/cli"

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cli.Execute(Version, BuildTime)
}
