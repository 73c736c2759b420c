package main

import (
	"os"

	"stockmatrix/cmd/matrixctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
