// engramd is the memory daemon. By default it speaks MCP over stdio;
// with -socket it serves JSON-RPC on a unix socket so several clients
// can share one store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/engramhq/engram-mcp/internal/classify"
	"github.com/engramhq/engram-mcp/internal/config"
	"github.com/engramhq/engram-mcp/internal/engine"
	"github.com/engramhq/engram-mcp/internal/logger"
	"github.com/engramhq/engram-mcp/internal/mcp"
	"github.com/engramhq/engram-mcp/internal/memory"
	"github.com/engramhq/engram-mcp/internal/rank"
	"github.com/engramhq/engram-mcp/internal/server"
	"github.com/engramhq/engram-mcp/internal/tools"
	memorytools "github.com/engramhq/engram-mcp/internal/tools/memory"
	"github.com/engramhq/engram-mcp/internal/vector"
	"github.com/engramhq/engram-mcp/internal/watcher"
	"github.com/engramhq/engram-mcp/pkg/version"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file")
		socketMode  = flag.Bool("socket", false, "serve on a unix socket instead of stdio")
		socketPath  = flag.String("socket-path", "", "override unix socket path")
		dbPath      = flag.String("db", "", "override database path")
		logLevel    = flag.String("log-level", "", "log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("engramd %s\n", version.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// The stdio transport owns stdout, so logs always go to stderr.
	logger.Init(logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
	log := logger.ForComponent("engramd")

	if err := cfg.EnsureDirectories(); err != nil {
		log.Error("failed to create data directories", "error", err)
		os.Exit(1)
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		log.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	registry := tools.NewRegistry()
	if err := memorytools.RegisterAll(registry, eng); err != nil {
		log.Error("failed to register tools", "error", err)
		os.Exit(1)
	}

	srv := mcp.NewServer(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Watcher.Enabled {
		w, err := watcher.New(cfg.Watcher, func(paths []string) {
			// Validate the edited tables right away so a broken file is
			// reported while the author is still looking at it. The new
			// values apply on restart.
			if _, err := config.LoadScoring(cfg.ScoringPath); err != nil {
				log.Error("scoring config invalid, keeping current tables", "error", err)
				return
			}
			log.Info("scoring config changed, restart to apply", "files", len(paths))
		})
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else {
			if err := w.Watch(filepath.Dir(cfg.ScoringPath)); err != nil {
				log.Warn("failed to watch scoring directory", "error", err)
			} else if err := w.Start(ctx); err != nil {
				log.Warn("failed to start config watcher", "error", err)
			} else {
				defer w.Stop()
			}
		}
	}

	if *socketMode {
		runSocket(ctx, cancel, cfg, srv, log)
		return
	}

	log.Info("serving MCP over stdio", "version", version.Version)
	if err := srv.ProcessStream(os.Stdin, os.Stdout); err != nil {
		log.Error("stdio stream failed", "error", err)
		os.Exit(1)
	}
}

func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	scoring, err := config.LoadScoring(cfg.ScoringPath)
	if err != nil {
		return nil, err
	}

	classifier, err := classify.NewClassifier(scoring.Classifier)
	if err != nil {
		return nil, err
	}

	generator, err := classify.NewGenerator(scoring.Classifier, classifier.Extractor())
	if err != nil {
		return nil, err
	}

	ranker, err := rank.NewRanker(scoring.Ranking)
	if err != nil {
		return nil, err
	}

	store, err := memory.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	index, err := vector.NewIndex(cfg.VectorDir, vector.LocalEmbedder(vector.DefaultDimensions))
	if err != nil {
		store.Close()
		return nil, err
	}

	eng, err := engine.New(store, index, classifier, generator, scoring.Consolidation, ranker, engine.Options{
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return eng, nil
}

func runSocket(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, srv *mcp.Server, log *slog.Logger) {
	listener := server.NewSocketListener(cfg.SocketPath)
	if err := listener.Start(); err != nil {
		log.Error("failed to open socket", "path", cfg.SocketPath, "error", err)
		os.Exit(1)
	}

	rpc := server.NewRPCServer(listener, srv)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", "signal", sig.String())
		cancel()
		rpc.Close()
	}()

	log.Info("serving MCP on unix socket", "path", cfg.SocketPath, "version", version.Version)
	if err := rpc.Serve(ctx); err != nil {
		log.Error("socket server failed", "error", err)
		os.Exit(1)
	}
}
