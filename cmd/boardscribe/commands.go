package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thyrook/boardscribe/internal/config"
	"github.com/thyrook/boardscribe/internal/iface"
	"github.com/thyrook/boardscribe/internal/logger"
	"github.com/thyrook/boardscribe/internal/metrics"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

// --- Global Command Variables ---
var (
	configPath  string
	logLevel    string
	metricsAddr string
	profiling   bool
	quiet       bool

	cfg         *config.Config
	log         *zap.Logger
	cli         *iface.CLI
	registry    *prometheus.Registry
	pipeMetrics *metrics.Metrics
	stopMetrics context.CancelFunc
	metricsDone chan error

	rootCmd = &cobra.Command{
		Use:   "boardscribe",
		Short: "Transcribe chess games from video into FEN and PGN",
		Long: `boardscribe locates a chessboard in recorded or live video, reads the
pieces on every sampled frame, and reconstructs the game as a
sequence of legal moves exported as FEN and PGN.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	// --- Analysis ---
	analyzeCmd = &cobra.Command{
		Use:   "analyze [video]",
		Short: "Analyze a recorded video and export the game",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze, // Defined in cmd_analyze.go
	}
	liveCmd = &cobra.Command{
		Use:   "live",
		Short: "Follow a game shown on screen until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runLive, // Defined in cmd_analyze.go
	}
	simulateCmd = &cobra.Command{
		Use:   "simulate [pgn]",
		Short: "Replay PGN games through position validation and move inference",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulate, // Defined in cmd_simulate.go
	}

	// --- Model ---
	trainCmd = &cobra.Command{
		Use:   "train",
		Short: "Train the square classifier on rendered boards",
		Args:  cobra.NoArgs,
		RunE:  runTrain, // Defined in cmd_train.go
	}
	renderCmd = &cobra.Command{
		Use:   "render [pgn]",
		Short: "Render positions from a PGN as synthetic board frames",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender, // Defined in cmd_render.go
	}

	// --- Archive ---
	gamesCmd = &cobra.Command{
		Use:   "games",
		Short: "Browse archived games",
	}
	gamesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List archived games, newest first",
		Args:  cobra.NoArgs,
		RunE:  runGamesList, // Defined in cmd_games.go
	}
	gamesShowCmd = &cobra.Command{
		Use:   "show [id]",
		Short: "Show an archived game and its PGN",
		Args:  cobra.ExactArgs(1),
		RunE:  runGamesShow, // Defined in cmd_games.go
	}
	gamesDeleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an archived game",
		Args:  cobra.ExactArgs(1),
		RunE:  runGamesDelete, // Defined in cmd_games.go
	}
	gamesExportCmd = &cobra.Command{
		Use:   "export [file]",
		Short: "Write every archived game to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE:  runGamesExport, // Defined in cmd_games.go
	}
	gamesImportCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "Load games from a JSONL export",
		Args:  cobra.ExactArgs(1),
		RunE:  runGamesImport, // Defined in cmd_games.go
	}
	gamesBackupCmd = &cobra.Command{
		Use:   "backup [file]",
		Short: "Copy the archive database",
		Args:  cobra.ExactArgs(1),
		RunE:  runGamesBackup, // Defined in cmd_games.go
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (JSON or YAML)")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.BoolVar(&profiling, "pprof", false, "mount pprof handlers on the metrics endpoint")
	pf.BoolVarP(&quiet, "quiet", "q", false, "print only moves, warnings and errors")

	initAnalyzeFlags()
	initSimulateFlags()
	initTrainFlags()
	initRenderFlags()
	initGamesFlags()

	gamesCmd.AddCommand(gamesListCmd, gamesShowCmd, gamesDeleteCmd, gamesExportCmd, gamesImportCmd, gamesBackupCmd)
	rootCmd.AddCommand(analyzeCmd, liveCmd, simulateCmd, trainCmd, renderCmd, gamesCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Interface.LogLevel = logLevel
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if profiling {
		cfg.Metrics.Profiling = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	if err := logger.Setup(cfg.Logger()); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	log = logger.Get().Named(cmd.Name())
	log.Debug("boardscribe starting",
		zap.String("version", Version),
		zap.String("go_version", runtime.Version()),
		zap.String("config", configPath))
	cli = iface.NewCLI(os.Stdout, quiet)

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipeMetrics = metrics.New(registry)

	if cfg.Metrics.Addr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		stopMetrics = cancel
		metricsDone = make(chan error, 1)
		go func() {
			metricsDone <- metrics.Serve(ctx, cfg.Metrics.Addr, registry, cfg.Metrics.Profiling, log.Named("metrics"))
		}()
	}
	return nil
}

// shutdown stops the metrics endpoint and flushes logs. It runs after
// every command, including failed ones.
func shutdown() {
	if stopMetrics != nil {
		stopMetrics()
		if err := <-metricsDone; err != nil {
			log.Warn("Metrics endpoint failed", zap.Error(err))
		}
		stopMetrics = nil
	}
	_ = logger.Sync()
}
