package main

import (
	"os"

	"github.com/bimmerbailey/ctxlens/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}
