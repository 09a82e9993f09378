// Command convmem runs the conversational memory service.
package main

// @title Convmem API
// @version 1.0
// @description Per-user conversational memory: history, learned profiles, settings and privacy controls

// @host localhost:8080
// @BasePath /
// @schemes http https

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/strainwise/convmem/config"
	"github.com/strainwise/convmem/pkg/app"
	"github.com/strainwise/convmem/pkg/logger"
	"github.com/strainwise/convmem/pkg/version"
)

type options struct {
	configPath string
	version    bool
	help       bool
	watch      bool

	// CLI overrides
	appName  string
	port     int
	logLevel string
	debug    bool
}

func parseFlags(args []string, output io.Writer) (*options, *flag.FlagSet, error) {
	opts := &options{}
	fs := flag.NewFlagSet("convmem", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.BoolVar(&opts.version, "version", false, "Print version information")
	fs.BoolVar(&opts.help, "help", false, "Print help information")
	fs.BoolVar(&opts.watch, "watch", true, "Reload log level and rate limits when the config file changes")

	fs.StringVar(&opts.appName, "app-name", "", "Override app name")
	fs.IntVar(&opts.port, "port", 0, "Override server port")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override log level")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug mode")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	return opts, fs, nil
}

func main() {
	opts, fs, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	if opts.help {
		printHelp(os.Stdout, fs)
		os.Exit(0)
	}
	if opts.version {
		printVersion(os.Stdout)
		os.Exit(0)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "convmem: %v\n", err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(opts.configPath, buildOverrides(opts))
	if err != nil {
		return fmt.Errorf("failed to load configuration:\n%w", err)
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)
	defer log.Close()

	log.Info("Starting convmem",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
		"node_id", cfg.App.NodeID,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := node.Start(ctx); err != nil {
		_ = node.Shutdown(context.Background())
		return err
	}

	if opts.watch && opts.configPath != "" {
		watchConfig(ctx, opts.configPath, cfg, node, log)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := node.Server().Start(); err != nil {
			serverErr <- err
		}
	}()

	log.Info("convmem is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"conversations", cfg.Storage.Conversations.Type,
		"cache", cfg.Storage.Cache.Type,
	)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case runErr = <-serverErr:
		log.Error("HTTP server error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer cancel()
	if err := node.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	log.Info("convmem stopped")
	return runErr
}

// watchConfig applies hot-reloadable settings when the config file changes.
func watchConfig(ctx context.Context, path string, current *config.Config, node *app.App, log logger.Logger) {
	watcher, err := config.NewWatcher(path, config.NewLoader())
	if err != nil {
		log.Warn("Config watcher disabled", "error", err)
		return
	}

	last := config.ExtractHotReloadable(current)
	updates := make(chan *config.Config, 1)
	watcher.OnChange(func(cfg *config.Config) {
		select {
		case updates <- cfg:
		default:
		}
	})

	go func() {
		if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Warn("Config watcher stopped", "error", err)
		}
	}()
	go func() {
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case cfg := <-updates:
				next := config.ExtractHotReloadable(cfg)
				if !next.Changed(last) {
					continue
				}
				last = next
				node.Reload(cfg)
			}
		}
	}()
}

func buildOverrides(opts *options) map[string]interface{} {
	overrides := make(map[string]interface{})

	if opts.appName != "" {
		overrides["app.name"] = opts.appName
	}
	if opts.port != 0 {
		overrides["server.port"] = opts.port
	}
	if opts.logLevel != "" {
		overrides["log.level"] = opts.logLevel
	}
	if opts.debug {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "convmem - Conversational memory service\n")
	fmt.Fprintf(w, "Version:    %s\n", version.Version)
	fmt.Fprintf(w, "Build Time: %s\n", version.BuildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", version.GitCommit)
	fmt.Fprintf(w, "Go Version: %s\n", version.GoVersion)
}

func printHelp(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "convmem - Conversational memory and context reconstruction service\n\n")
	fmt.Fprintf(w, "Usage: convmem [options]\n\n")
	fmt.Fprintf(w, "Options:\n")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  convmem                                   # Run with default config\n")
	fmt.Fprintf(w, "  convmem -config config.yaml               # Use specific config file\n")
	fmt.Fprintf(w, "  convmem -port 9090 -log-level debug       # Override specific options\n")
	fmt.Fprintf(w, "  CONVMEM_MEMORY_ENCRYPTION_KEY=... convmem # Supply the encryption key\n")
	fmt.Fprintf(w, "  convmem -version                          # Print version info\n")
}
