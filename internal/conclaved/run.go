// Package conclaved wires the orchestration engine, model hub, and HTTP
// surface into the conclaved server process.
package conclaved

import (
	"github.com/mellis-dev/conclave/internal/conclaved/config"
)

// Run launches the conclaved server from config. It blocks until the
// server stops.
func Run(cfg *config.Config) error {
	server, err := createAPIServer(cfg)
	if err != nil {
		return err
	}

	return server.PrepareRun().Run()
}
