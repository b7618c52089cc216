package main

import (
	"os"

	"github.com/mellis-dev/conclave/internal/conclavectl"
)

func main() {
	command := conclavectl.NewConclaveCtlCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
