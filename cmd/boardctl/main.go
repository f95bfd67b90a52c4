package main

import (
	"os"

	"github.com/ashmit2704/taskboard/cmd/boardctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
