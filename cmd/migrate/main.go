// Command migrate applies the embedded schema migrations to DATABASE_URL.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/trustid/trustid/internal/config"
	"github.com/trustid/trustid/internal/infra"
)

func main() {
	direction := flag.String("direction", infra.MigrateUp, "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := infra.Migrate(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Printf("migrations applied (%s)\n", *direction)
}
