package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/pathgrid/internal/config"
	"github.com/udisondev/pathgrid/internal/db"
	"github.com/udisondev/pathgrid/internal/movedef"
	"github.com/udisondev/pathgrid/internal/pathing"
	"github.com/udisondev/pathgrid/internal/scenario"
	"github.com/udisondev/pathgrid/internal/store"
)

const (
	ConfigPath   = "config/pathsim.yaml"
	ScenarioPath = "scenarios/wall.toml"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("PATHGRID_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadPathing(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	scPath := ScenarioPath
	if p := os.Getenv("PATHGRID_SCENARIO"); p != "" {
		scPath = p
	}
	sc, err := scenario.Load(scPath)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}
	m, err := sc.BuildMap()
	if err != nil {
		return err
	}
	defs, err := movedef.LoadLua(sc.MoveDefsPath())
	if err != nil {
		return fmt.Errorf("loading movedefs: %w", err)
	}
	set, err := movedef.NewSet(m, defs)
	if err != nil {
		return fmt.Errorf("building movement classes: %w", err)
	}
	if err := sc.CheckClasses(set); err != nil {
		return err
	}

	w, h := m.Size()
	slog.Info("pathsim starting",
		"scenario", sc.Name,
		"map_x", w,
		"map_z", h,
		"classes", set.Len(),
		"agents", len(sc.Agents),
		"cache_store", cfg.CacheStore)

	blobs, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	mgr, err := pathing.NewManager(cfg, sc.Name, m, scenario.ClassSet(set), blobs)
	if err != nil {
		return fmt.Errorf("creating pathing manager: %w", err)
	}
	defer mgr.Close()

	start := time.Now()
	if err := mgr.Init(ctx); err != nil {
		return fmt.Errorf("initializing pathing: %w", err)
	}
	slog.Info("pathing initialized", "elapsed", time.Since(start), "checksum", fmt.Sprintf("%08x", mgr.PathChecksum()))

	g, gctx := errgroup.WithContext(ctx)
	simCtx, simDone := context.WithCancel(gctx)
	defer simDone()

	if cfg.MetricsAddress != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddress)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.MetricsAddress, err)
		}
		g.Go(func() error {
			slog.Info("starting metrics server", "address", ln.Addr().String())
			return serveMetrics(simCtx, ln)
		})
	}

	var rep scenario.Report
	g.Go(func() error {
		// Stops the metrics server once the run is over.
		defer simDone()
		var err error
		rep, err = scenario.Run(simCtx, mgr, sc, m, set)
		if err != nil {
			return fmt.Errorf("running scenario: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logReport(rep)
	return nil
}

// openStore returns the blob store selected by cfg.CacheStore and a
// function releasing it.
func openStore(ctx context.Context, cfg config.Pathing) (store.BlobStore, func(), error) {
	switch cfg.CacheStore {
	case "file":
		fs, err := store.NewFileStore(cfg.CacheDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening cache dir: %w", err)
		}
		return fs, func() {}, nil
	case "postgres":
		database, err := db.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database connected", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)
		return database.Blobs(), database.Close, nil
	default:
		return nil, func() {}, nil
	}
}

// serveMetrics serves /metrics on ln until ctx is done.
func serveMetrics(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}

func logReport(rep scenario.Report) {
	reached := 0
	for i, a := range rep.Agents {
		if a.Reached {
			reached++
		}
		slog.Info("agent finished",
			"agent", i,
			"class", a.Class,
			"path", a.PathID,
			"result", a.Result,
			"steps", a.Steps,
			"reached", a.Reached,
			"x", a.Final.X,
			"z", a.Final.Z)
	}
	for _, t := range []pathing.Tier{pathing.TierFine, pathing.TierMed, pathing.TierLow} {
		s := rep.Stats.Searches[t]
		c := rep.Stats.Caches[t]
		slog.Info("tier stats",
			"tier", t,
			"searches", s.Searches,
			"expansions", s.Expansions,
			"cache_hits", c.Hits,
			"cache_misses", c.Misses)
	}
	slog.Info("scenario finished",
		"ticks", rep.Ticks,
		"reached", reached,
		"agents", len(rep.Agents),
		"checksum", fmt.Sprintf("%08x", rep.Checksum))
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
