// Command promo runs promotional drawings and manages their history from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kydenul/promo"
)

type rootOptions struct {
	configFile string
	backend    string
	sqlitePath string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "promo",
		Short:         "Run promotional random drawings and review past results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default: ./config.yaml, /etc/promo, $HOME/.promo)")
	flags.StringVar(&opts.backend, "backend", "", "history storage backend: redis, sqlite or memory")
	flags.StringVar(&opts.sqlitePath, "db", "", "sqlite database path")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: json or console")

	root.AddCommand(newDrawCommand(opts), newHistoryCommand(opts))
	return root
}

// app wires configuration, logging, storage and the engine for one command invocation
type app struct {
	cfg     *promo.Config
	logger  *promo.ZapLogger
	backend *promo.Backend
	engine  *promo.Engine
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cm := promo.NewConfigManager()
	cm.SetConfigFile(opts.configFile)
	overrides := map[string]string{
		"storage.backend":     opts.backend,
		"storage.sqlite_path": opts.sqlitePath,
		"logging.level":       opts.logLevel,
		"logging.format":      opts.logFormat,
	}
	for key, value := range overrides {
		if value != "" {
			cm.Set(key, value)
		}
	}

	cfg, err := cm.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := promo.NewZapLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	monitor := promo.NewPerformanceMonitor()
	backend, err := promo.OpenBackend(cfg, logger, monitor)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	history := backend.NewHistoryStore(cfg, logger, monitor)
	history.Load(ctx)

	engine, err := promo.NewEngine(
		promo.WithConfig(cfg),
		promo.WithLogger(logger),
		promo.WithHistory(history),
		promo.WithMonitor(monitor),
	)
	if err != nil {
		_ = backend.Close()
		_ = logger.Sync()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, backend: backend, engine: engine}, nil
}

func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		a.logger.Error("Failed to close storage backend: %v", err)
	}
	_ = a.logger.Sync()
}
