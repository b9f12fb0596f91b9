// Command billing runs one billing pass for a module and exits. It is meant to
// be scheduled externally (cron, k8s CronJob); reads of the ledger run the
// same pass on demand.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimasrn/rental-billing/internal/app"
	"github.com/nimasrn/rental-billing/internal/config"
	"github.com/nimasrn/rental-billing/internal/model"
	"github.com/nimasrn/rental-billing/pkg/logger"
)

func main() {
	var (
		envPath = flag.String("env", "", "optional .env file")
		module  = flag.String("module", string(model.ModuleRental), "module to bill: general or rental")
		timeout = flag.Duration("timeout", 5*time.Minute, "abort the pass after this long")
	)
	flag.Parse()

	if err := run(*envPath, *module, *timeout); err != nil {
		logger.Error("billing pass failed", "module", *module, "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(envPath, moduleName string, timeout time.Duration) error {
	if err := config.Load(envPath); err != nil {
		return err
	}
	module, err := model.ParseModule(moduleName)
	if err != nil {
		return err
	}

	a, err := app.New(config.Get())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := a.Ledger.RunBillingPass(ctx, module)
	if res != nil {
		logger.GetLogger().With("module", module).Info("billing pass finished",
			"overdue", len(res.Overdue),
			"generated", len(res.Generated),
			"fees", len(res.Fees),
			"duration", time.Since(start).String(),
		)
	}
	return err
}
