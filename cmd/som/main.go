package main

import (
	"os"

	"github.com/getcharzp/go-som/cmd/som/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
