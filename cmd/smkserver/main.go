package main

import (
	"fmt"
	"os"

	"storymark/internal/backend"
	applog "storymark/internal/log"
	"storymark/internal/version"
)

func main() {
	// Standalone entrypoint for the shared archive server.
	applog.Init(applog.FromEnv())
	args := os.Args
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("smkserver " + version.String())
			return
		}
	}

	if err := backend.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
