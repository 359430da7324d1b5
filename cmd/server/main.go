// Command server runs the commerce API: HTTP endpoints for auth, users,
// products and orders, the persisted background task runner, and the
// in-process report pool.
package main

import (
	"fmt"
	"os"

	"github.com/stackmesh/commerce-api/internal/config"
	"github.com/stackmesh/commerce-api/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Server.LogLevel)

	app, err := newApplication(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := app.run(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
