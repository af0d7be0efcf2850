// -----------------------------------------------------------------------
// Cogito - LLM orchestration service entry point
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cogito/internal/common"
	"github.com/ternarybob/cogito/internal/services/analytics"
	"github.com/ternarybob/cogito/internal/services/llm"
	"github.com/ternarybob/cogito/internal/services/orchestrator"
	"github.com/ternarybob/cogito/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Cogito version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("cogito.toml"); err == nil {
			configFiles = append(configFiles, "cogito.toml")
		} else if _, err := os.Stat("deployments/local/cogito.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/cogito.toml")
		}
	}

	// Startup sequence: config, logger, banner, storage, orchestrator
	var err error
	config, err = common.LoadConfig(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.LoadVersionFromFile())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("log_level", config.Logging.Level).
		Str("default_provider", string(config.LLM.DefaultProvider)).
		Msg("Application configuration loaded")

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
		os.Exit(1)
	}
	defer storageManager.Close()

	factory := llm.NewProviderFactory(&config.Claude, &config.Gemini, &config.LLM, logger)

	service, err := orchestrator.NewService(config, factory, storageManager.InteractionStorage(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize orchestrator")
		os.Exit(1)
	}
	service.Start()

	var rollup *analytics.Scheduler
	if config.Analytics.Enabled {
		rollup = analytics.NewScheduler(
			analytics.NewService(storageManager.InteractionStorage(), logger),
			logger,
		)
		if err := rollup.Start(config.Analytics.Schedule); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start analytics scheduler")
			os.Exit(1)
		}
	}

	logger.Info().Msg("Cogito ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	// Graceful shutdown: stop taking work, drain in-flight jobs
	if rollup != nil {
		rollup.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := service.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Orchestrator shutdown failed")
	}

	logger.Info().Msg("Cogito stopped")
}
