package main

import (
	"math/rand"
	"os"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/mellis-dev/conclave/internal/conclaved"
)

func main() {
	rand.New(rand.NewSource(time.Now().UTC().UnixNano()))

	command := conclaved.NewCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
