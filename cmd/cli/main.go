package main

import (
	"os"
	"strings"

	"github.com/nimasrn/rental-billing/internal/app"
	"github.com/nimasrn/rental-billing/internal/config"
	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/nimasrn/rental-billing/pkg/pg"
)

// main.go --env=.env --dir=./migrations
func main() {
	err := config.Load(argValue("--env=", ".env"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	err = pg.Migrate(app.WriteConfig(config.Get()), argValue("--dir=", "./migrations"))
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
		os.Exit(1)
	}
}

// argValue returns the path passed as prefix+path, or def when it exists.
// Missing paths resolve to "".
func argValue(prefix, def string) string {
	path := def
	explicit := false
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			path = strings.TrimPrefix(v, prefix)
			explicit = true
		}
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			logger.Error("failed to open "+path, "error", err)
		}
		return ""
	}
	return path
}
