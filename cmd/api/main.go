package main

import (
	"os"
	"strings"

	"github.com/nimasrn/rental-billing/internal/app"
	"github.com/nimasrn/rental-billing/internal/config"
	"github.com/nimasrn/rental-billing/internal/handlers"
	xhttp "github.com/nimasrn/rental-billing/pkg/http"
	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/nimasrn/rental-billing/pkg/prom"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting billing api", "version", version, "commit", commit, "date", date)

	a, err := app.New(cfg)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		return
	}

	startMetrics(cfg)

	s := xhttp.CreateServer()
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)

	checks := map[string]handlers.HealthCheck{"postgres": a.DB.Ping}
	if a.Redis != nil {
		checks["redis"] = a.RedisPing
	}

	g := s.Router.Group(cfg.HttpBaseRequestUrl)
	handlers.RegisterLedgerRoutes(g, handlers.NewLedgerHandler(a.Ledger))
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(a.Ledger, a.Settlement, a.Guard))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(checks))

	s.CloseOnSignal()
	if err = s.ListenAndServe(cfg.HttpListenAddr); err != nil {
		logger.Error("error in running http-server", "error", err)
	}
}

func startMetrics(cfg *config.Config) {
	if cfg.AppDebugMetricsAddr == "" {
		return
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Stat(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
