package main

import (
	"os"

	"github.com/HsiangNianian/simid-bridge/cmd/simid/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
