package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/eventpass/internal/access"
	"github.com/mtlprog/eventpass/internal/api"
	"github.com/mtlprog/eventpass/internal/aquarius"
	"github.com/mtlprog/eventpass/internal/chain"
	"github.com/mtlprog/eventpass/internal/config"
	"github.com/mtlprog/eventpass/internal/convert"
	"github.com/mtlprog/eventpass/internal/database"
	"github.com/mtlprog/eventpass/internal/domain"
	"github.com/mtlprog/eventpass/internal/export"
	"github.com/mtlprog/eventpass/internal/external"
	"github.com/mtlprog/eventpass/internal/pricing"
	"github.com/mtlprog/eventpass/internal/provider"
	"github.com/mtlprog/eventpass/internal/session"
	"github.com/mtlprog/eventpass/internal/subgraph"
	"github.com/mtlprog/eventpass/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	app := &cli.App{
		Name:   "eventpass",
		Usage:  "event ticket access and pricing service",
		Action: func(c *cli.Context) error { return serve(c.Context, cfg) },
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the rate worker",
				Action: func(c *cli.Context) error { return serve(c.Context, cfg) },
			},
			{
				Name:  "resolve",
				Usage: "resolve ticket access of an account and print it as JSON",
				Flags: assetFlags(cfg),
				Action: func(c *cli.Context) error {
					return resolve(c.Context, cfg, c.String("did"), c.String("account"))
				},
			},
			{
				Name:   "prices",
				Usage:  "fetch spot rates once and print them as JSON",
				Action: func(c *cli.Context) error { return printPrices(c.Context, cfg) },
			},
			{
				Name:  "export",
				Usage: "write an xlsx ticket report for an account",
				Flags: append(assetFlags(cfg),
					&cli.StringFlag{Name: "out", Value: "tickets.xlsx", Usage: "output file"},
					&cli.StringFlag{Name: "currency", Value: firstOr(cfg.Currencies, "EUR"), Usage: "display currency"},
				),
				Action: func(c *cli.Context) error {
					return exportReport(c.Context, cfg, c.String("did"), c.String("account"), c.String("currency"), c.String("out"))
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func assetFlags(cfg config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "did", Value: cfg.AssetDID, Usage: "asset DID"},
		&cli.StringFlag{Name: "account", Required: true, Usage: "wallet address"},
	}
}

// services holds the components shared by all commands.
type services struct {
	rates     *external.Service
	sessions  *session.Manager
	resolver  *access.Resolver
	converter *convert.Converter
	balances  api.BalanceReader
	orders    api.OrderPricer
	closers   []func()
}

func (a *services) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (*services, error) {
	a := &services{}

	if !cfg.IsSupportedChain(cfg.ChainID) {
		slog.Warn("default chain is not in SUPPORTED_CHAIN_IDS, its lookups will fail", "chainId", cfg.ChainID)
	}

	subgraphClient := subgraph.NewClient(cfg.SubgraphURLs, cfg.SubgraphRetryMax, cfg.SubgraphRetryBaseDelay)
	a.resolver = access.NewResolver(subgraphClient, cfg.SupportedChainIDs, cfg.ResolveConcurrency)

	metadata := aquarius.NewClient(cfg.MetadataCacheURL, cfg.MetadataCacheTTL, cfg.SubgraphRetryMax, cfg.SubgraphRetryBaseDelay)
	a.sessions = session.NewManager(metadata, a.resolver, cfg.SessionIdleTTL, cfg.MaxSessions)

	var rateRepo external.RateRepository
	if pool != nil {
		rateRepo = external.NewPgRateRepository(pool)
	}
	coingecko := external.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoDelay, cfg.CoinGeckoRetryMax)
	a.rates = external.NewService(coingecko, rateRepo, cfg.CoinGeckoTokenIDs, cfg.Currencies)
	a.converter = convert.NewConverter(cfg.TokenSymbolIDs, "OCEAN")

	if cfg.RPCURL == "" {
		slog.Warn("RPC_URL not set, affordability and order pricing are disabled")
		return a, nil
	}
	reader, ethClient, err := chain.Dial(ctx, cfg.RPCURL, cfg.OceanTokenAddress, cfg.FixedRateExchangeAddress)
	if err != nil {
		return nil, fmt.Errorf("connecting to chain: %w", err)
	}
	a.closers = append(a.closers, ethClient.Close)
	a.balances = reader
	a.orders = pricing.NewCalculator(reader, provider.NewClient(cfg.ProviderTimeout), cfg.Fees)

	return a, nil
}

func connectDB(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, rate history is disabled")
		return nil, nil
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return pool, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	pool, err := connectDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setting up database: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	a, err := build(ctx, cfg, pool)
	if err != nil {
		return fmt.Errorf("creating services: %w", err)
	}
	defer a.Close()

	rateWorker := worker.NewRateWorker(a.rates, cfg.RateWorkerInterval)
	go rateWorker.Run(ctx)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, refresh endpoint is unprotected")
	}

	handler := api.NewHandler(api.Deps{
		Resolver:   a.resolver,
		Sessions:   a.sessions,
		Rates:      a.rates,
		Balances:   a.balances,
		Orders:     a.orders,
		Converter:  a.converter,
		Currencies: cfg.Currencies,

		DefaultChainID: cfg.ChainID,
	})
	srv := api.NewServer(cfg.HTTPPort, handler, cfg.AdminAPIKey)

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stopServer()
		}
	}()

	// Wait for shutdown signal
	<-serverCtx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func resolve(ctx context.Context, cfg config.Config, did, account string) error {
	a, err := build(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := a.sessions.Refresh(ctx, did, account)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", did, err)
	}

	agg := state.Aggregator()
	out := struct {
		session.State
		Slots         []resolvedSlot `json:"slots"`
		TotalUnlocked int            `json:"totalUnlocked"`
		TotalSpent    int64          `json:"totalSpent"`
	}{state, resolvedSlots(state.Slots), agg.TotalUnlocked(), agg.TotalSpent()}

	return printJSON(out)
}

// resolvedSlot is a slot as printed by resolve. Unknown slots carry the error
// kind and message instead of details.
type resolvedSlot struct {
	Index   int                   `json:"index"`
	Details *domain.AccessDetails `json:"details,omitempty"`
	Error   domain.ErrorKind      `json:"error,omitempty"`
	Message string                `json:"message,omitempty"`
}

func resolvedSlots(slots []domain.AccessResult) []resolvedSlot {
	out := make([]resolvedSlot, len(slots))
	for i, slot := range slots {
		out[i] = resolvedSlot{Index: i, Details: slot.Details}
		if slot.Err != nil {
			out[i].Error = domain.KindOf(slot.Err)
			out[i].Message = slot.Err.Error()
		}
	}
	return out
}

func printPrices(ctx context.Context, cfg config.Config) error {
	a, err := build(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.rates.Refresh(ctx); err != nil {
		return err
	}
	return printJSON(a.rates.Current())
}

func exportReport(ctx context.Context, cfg config.Config, did, account, currency, out string) error {
	a, err := build(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.rates.Refresh(ctx); err != nil {
		slog.Warn("spot rates unavailable, converted columns will show placeholders", "error", err)
	}

	state, err := a.sessions.Refresh(ctx, did, account)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", did, err)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()

	report := export.Report{
		Asset:       *state.Asset,
		Account:     state.Account,
		Slots:       state.Slots,
		Currency:    currency,
		Rates:       a.rates.Prices(),
		GeneratedAt: time.Now(),
	}
	if err := export.Write(f, report, a.converter); err != nil {
		return err
	}
	slog.Info("ticket report written", "file", out, "tickets", len(state.Slots))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}
