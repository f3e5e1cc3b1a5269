package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"p2pwatcher/internal/alerting"
	"p2pwatcher/internal/config"
	"p2pwatcher/internal/fetcher"
	"p2pwatcher/internal/httpapi"
	"p2pwatcher/internal/scheduler"
	"p2pwatcher/internal/service"
	"p2pwatcher/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command reports.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newSource() *fetcher.Bybit {
	cfg := a.Config.Bybit
	return fetcher.NewBybit(fetcher.BybitOptions{
		BaseURL:        cfg.BaseURL,
		Token:          cfg.Token,
		Currency:       cfg.Currency,
		PageSize:       cfg.PageSize,
		Timeout:        cfg.RequestTimeout,
		UserAgent:      cfg.UserAgent,
		PaymentMethods: cfg.PaymentMethods,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) newAlerter() *alerting.SpreadAlerter {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	return alerting.NewSpreadAlerter(a.newNotifier(), a.Config.Alerting.ThresholdPct, a.Config.Alerting.Cooldown)
}

// openGateway returns the persistence backend selected by persistence.driver.
// A nil gateway means in-memory only.
func (a *App) openGateway(ctx context.Context) (storage.Gateway, func(), error) {
	noop := func() {}

	switch a.Config.Persistence.Driver {
	case config.DriverNone:
		return nil, noop, nil
	case config.DriverFile:
		return storage.NewFileGateway(a.Config.Persistence.FilePath), noop, nil
	case config.DriverPostgres:
		pool, err := storage.NewPool(ctx, a.Config.Database, a.Config.App.Name)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.DriverRedis:
		client, err := storage.NewRedisClient(ctx, a.Config.Redis)
		if err != nil {
			return nil, nil, err
		}
		gw := storage.NewRedisGateway(client, a.Config.Redis.Key)
		return gw, func() { _ = gw.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown persistence driver %q", a.Config.Persistence.Driver)
	}
}

// loadSamples reads the persisted snapshot for offline commands.
func (a *App) loadSamples(ctx context.Context) ([]storage.Sample, error) {
	gw, closeGw, err := a.openGateway(ctx)
	if err != nil {
		return nil, err
	}
	defer closeGw()
	if gw == nil {
		return nil, errors.New("persistence.driver is none; nothing to read")
	}
	return gw.LoadAll(ctx)
}

func (a *App) newMonitor(source fetcher.QuoteSource, gateway storage.Gateway, alerter *alerting.SpreadAlerter) (*service.Monitor, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}
	return service.New(service.Options{
		Interval:        a.Config.Sampling.Interval,
		SnapshotEvery:   a.Config.Persistence.SnapshotEvery,
		HistoryCapacity: a.Config.Sampling.HistoryCapacity,
		Location:        loc,
		AdvisoryLockKey: a.Config.Sampling.AdvisoryLockKey,
	}, source, gateway, alerter, a.Logger), nil
}

func (a *App) banks() []httpapi.Bank {
	codes := make([]string, 0, len(a.Config.Bybit.PaymentMethods))
	for code := range a.Config.Bybit.PaymentMethods {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	banks := make([]httpapi.Bank, 0, len(codes))
	for _, code := range codes {
		name := fetcher.BankNames[code]
		if name == "" {
			name = code
		}
		banks = append(banks, httpapi.Bank{Code: code, Name: name})
	}
	return banks
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gateway, closeGateway, err := a.openGateway(ctx)
	if err != nil {
		return err
	}
	defer closeGateway()
	if gateway == nil {
		a.Logger.Warn().Msg("persistence.driver is none; history will not survive restarts")
	}

	source := a.newSource()
	monitor, err := a.newMonitor(source, gateway, a.newAlerter())
	if err != nil {
		return err
	}
	if err := monitor.Load(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("could not load persisted history; sampling in memory only, snapshots disabled until restart")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitor.Run(gctx)
	})

	if a.Config.HTTP.Enabled {
		apiOpts := httpapi.Options{
			DefaultMinAmount: a.Config.Sampling.MinAmount,
			LatestLimit:      a.Config.HTTP.LatestLimit,
			Banks:            a.banks(),
			SupportsBank:     source.SupportsBank,
		}
		if pinger, ok := gateway.(storage.Pinger); ok {
			apiOpts.CheckStorage = pinger.Ping
		}
		handler := httpapi.NewHandler(monitor, apiOpts, a.Logger)
		srv := handler.Server(a.Config.HTTP.Addr, a.Config.HTTP.ReadTimeout, a.Config.HTTP.WriteTimeout)

		g.Go(func() error {
			a.Logger.Info().Str("addr", srv.Addr).Msg("http api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if a.Config.Sampling.Autostart {
		cfg := scheduler.Config{MinAmount: a.Config.Sampling.MinAmount, Bank: a.Config.Sampling.Bank}
		if _, err := monitor.Start(cfg); err != nil {
			a.Logger.Error().Err(err).Msg("autostart failed")
		}
	}

	a.Logger.Info().Msg("monitoring service ready")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From          *time.Time
	To            *time.Time
	PNGPath       string
	CSVPath       string
	HourlyCSVPath string
	HourlyPNGPath string
	MaxPoints     int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	// JSON prints one sample per line instead of a table.
	JSON bool
}

// ImportOptions configure the legacy CSV import.
type ImportOptions struct {
	Paths  []string
	DryRun bool
}
