package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/fazzledev/canvas-lms/internal/setup"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	args := os.Args
	if len(args) > 1 && args[1] == "--version" {
		printVersion()
		return
	}
	if err := setup.Main(args); err != nil {
		var exitErr *setup.ExitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		log.Fatal(err)
	}
}

func printVersion() {
	shortHash := commit
	if len(shortHash) > 7 {
		shortHash = shortHash[:7]
	}
	fmt.Printf("version: %s\n", version)
	fmt.Printf("git hash: %s\n", shortHash)
	fmt.Printf("build date: %s\n", buildDate)
}
