package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"paperbroker/api"
	"paperbroker/broker"
	"paperbroker/config"
	"paperbroker/engine"
	"paperbroker/journal"
	"paperbroker/market"
	"paperbroker/risk"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with the REST/WebSocket API",
	Long: `Start the paper trading engine, the simulated quote feed and the HTTP API.

Example:
  paperbroker serve -f config.yaml`,
	RunE: runServe,
}

var serveConfigPath string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := config.Default()
	if serveConfigPath != "" {
		loaded, err := config.LoadFromFile(serveConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	var (
		j     journal.Journal
		store api.SettingsStore
		err   error
	)
	switch cfg.Journal.Type {
	case "csv":
		j, err = journal.NewCSV(cfg.Journal.OrdersFile, cfg.Journal.EquityFile)
	case "sqlite":
		sq, sqErr := journal.NewSQLite(cfg.Journal.DBPath)
		j, store, err = sq, sq, sqErr
	default:
		j = journal.Nop{}
	}
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	rm, err := risk.NewManager(risk.Settings{
		MaxDailyLoss:     cfg.Risk.MaxDailyLoss,
		RiskPerTrade:     cfg.Risk.RiskPerTrade,
		KillSwitchActive: cfg.Risk.KillSwitchActive,
	})
	if err != nil {
		return fmt.Errorf("risk settings: %w", err)
	}

	quoteTimeout, err := cfg.Server.ParseQuoteTimeout()
	if err != nil {
		return fmt.Errorf("quote timeout: %w", err)
	}

	feed := market.NewSimFeed(cfg.Feed.Seed)
	eng, err := engine.New(engine.Options{
		AccountID:        cfg.Account.ID,
		Currency:         cfg.Account.Currency,
		Balance:          cfg.Account.Balance,
		MarginMultiplier: cfg.Account.MarginMultiplier,
		QuoteTimeout:     quoteTimeout,
	}, feed, rm, j)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	srv := api.NewServer(log, eng, rm, store)

	interval, err := cfg.Feed.ParseInterval()
	if err != nil {
		return fmt.Errorf("feed interval: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go feed.Run(ctx, cfg.Feed.Symbols, interval, func(q broker.Quote) {
		eng.OnQuote(q)
		srv.Broadcast(q)
	})

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Routes(cfg.Server.AllowedOrigins),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutCtx)
	}()

	log.Info("paperbroker listening",
		slog.String("addr", cfg.Server.Addr),
		slog.String("account", cfg.Account.ID),
		slog.Float64("balance", cfg.Account.Balance),
	)

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	log.Info("paperbroker stopped")
	return nil
}
