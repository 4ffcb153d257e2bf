package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"spot-trade-bot-go/internal/alert"
	"spot-trade-bot-go/internal/allocator"
	"spot-trade-bot-go/internal/bot"
	"spot-trade-bot-go/internal/config"
	"spot-trade-bot-go/internal/logger"
	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/persistence"
	"spot-trade-bot-go/internal/reporter"
	"spot-trade-bot-go/internal/strategy"
	"spot-trade-bot-go/internal/venue"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "", "venue override: binance or paper (defaults to the config's venue)")
	flag.Parse()

	// A default logger so .env and config loading can already log; replaced
	// once the real log config is known.
	logger.Init(models.LogConfig{Level: "info", Output: "console"})

	if err := godotenv.Load(); err != nil {
		logger.S().Info("no .env file found, reading secrets from the environment")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.S().Fatalf("failed to load config: %v", err)
	}
	if *mode != "" {
		cfg.Venue.Name = *mode
	}

	logger.Init(cfg.Log)
	defer logger.S().Sync()

	store, err := persistence.NewBadgerStore(cfg.DBPath)
	if err != nil {
		logger.S().Fatalf("failed to open state store at %s: %v", cfg.DBPath, err)
	}
	defer store.Close()

	var alerts alert.Sink = alert.NopSink{}
	if cfg.Alert.WebhookURL != "" {
		alerts = alert.NewWebhookSink(cfg.Alert, logger.S())
	}
	defer alerts.Close()

	ledger := allocator.NewWalletLedger(cfg.Wallet)
	clock := venue.RealClock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instances := make([]*bot.Instance, 0, len(cfg.Instances))
	for i := range cfg.Instances {
		inst := &cfg.Instances[i]
		v, window, err := buildVenue(ctx, cfg, inst, clock)
		if err != nil {
			logger.S().Fatalf("instance %s: %v", inst.InstanceID, err)
		}

		executor := strategy.NewSplitExecutor(inst, v, store, clock, logger.S())
		engine := strategy.NewEngine(inst, executor, ledger, window, clock, logger.S())

		instance, err := bot.NewInstance(inst, v, engine, store, alerts, clock, logger.S())
		if err != nil {
			logger.S().Fatalf("instance %s: failed to initialize: %v", inst.InstanceID, err)
		}
		if err := instance.Start(ctx); err != nil {
			logger.S().Fatalf("instance %s: failed to start: %v", inst.InstanceID, err)
		}
		instances = append(instances, instance)
	}
	logger.S().Infof("started %d instance(s) on venue %s", len(instances), cfg.Venue.Name)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.S().Info("shutdown signal received, stopping instances")

	// Cooperative stop: each instance finishes its current cycle, including
	// any in-flight chunk, before returning.
	summaries := make([]reporter.InstanceSummary, 0, len(instances))
	for _, instance := range instances {
		instance.Stop()
		summaries = append(summaries, reporter.Summarize(instance.Config(), instance.State()))
	}
	cancel()

	reporter.Render(os.Stdout, summaries)
	logger.S().Info("all instances stopped, state persisted")
}

// buildVenue constructs the configured venue for one instance plus a regime
// window, seeded from recent hourly klines when the venue can provide them.
func buildVenue(ctx context.Context, cfg *models.AppConfig, inst *models.StrategyConfig, clock venue.Clock) (venue.Venue, *strategy.Window, error) {
	window := strategy.NewWindow(inst.RegimeWindowHours)

	switch cfg.Venue.Name {
	case "paper":
		pv := venue.NewPaperVenue(cfg.Venue, clock)
		pv.Deposit(decimal.Zero, inst.AllocatedCapital)
		return pv, window, nil
	case "binance", "":
		apiKey := os.Getenv("BINANCE_API_KEY")
		secretKey := os.Getenv("BINANCE_SECRET_KEY")
		if apiKey == "" || secretKey == "" {
			return nil, nil, models.ConfigurationError("BINANCE_API_KEY and BINANCE_SECRET_KEY must be set")
		}
		bv := venue.NewBinanceVenue(apiKey, secretKey, cfg.Venue, inst, clock)
		stats, err := bv.WarmupAnalytics(ctx, inst.RegimeWindowHours)
		if err != nil {
			logger.S().Warnw("analytics warm-up failed, regime window starts cold",
				"instanceId", inst.InstanceID, "err", err)
		} else {
			window.Seed(stats)
		}
		return bv, window, nil
	default:
		return nil, nil, models.ConfigurationError("unknown venue " + cfg.Venue.Name)
	}
}
