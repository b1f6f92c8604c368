// cmd/prefbench/main.go
package main

import (
	cmd "github.com/mwiater/prefbench/internal/commands"
)

// Populated by -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
)

// main starts the prefbench CLI by delegating to the cobra root command.
func main() {
	setVersionInfo(version, commit, date)
	executeCmd()
}
