// migrate applies the embedded SQL migrations to the Postgres database.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Skotchmaster/stockflow/internal/config"
	"github.com/Skotchmaster/stockflow/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DBDriver != "postgres" {
		fmt.Fprintln(os.Stderr, "migrations target postgres; the sqlite driver migrates itself on open")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
