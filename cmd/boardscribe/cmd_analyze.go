package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/config"
	"github.com/thyrook/boardscribe/internal/extractor"
	"github.com/thyrook/boardscribe/internal/frame"
	"github.com/thyrook/boardscribe/internal/iface"
	"github.com/thyrook/boardscribe/internal/locator"
	"github.com/thyrook/boardscribe/internal/logger"
	"github.com/thyrook/boardscribe/internal/model"
	"github.com/thyrook/boardscribe/internal/pipeline"
	"github.com/thyrook/boardscribe/internal/storage"
	"github.com/thyrook/boardscribe/internal/vision"
)

var (
	pgnOut          string
	fenOut          string
	archive         bool
	verbose         bool
	startFEN        string
	orientation     string
	sampleRate      float64
	classifierKind  string
	bootstrapFrames int
	liveDuration    time.Duration
	diffThreshold   float64
)

func initAnalyzeFlags() {
	for _, c := range []*cobra.Command{analyzeCmd, liveCmd} {
		f := c.Flags()
		f.StringVarP(&pgnOut, "out", "o", "", "write the PGN to this file")
		f.StringVar(&fenOut, "fen-out", "", "write the final FEN to this file")
		f.BoolVar(&archive, "archive", false, "store the game in the archive")
		f.BoolVarP(&verbose, "verbose", "v", false, "print every frame result")
		f.StringVar(&startFEN, "start-fen", board.StartingFEN, "position shown when template learning starts")
		f.StringVar(&orientation, "orientation", "", "rank 1 edge (bottom, top, left, right); empty calibrates")
		f.StringVar(&classifierKind, "classifier", "", "square classifier (template, squarenet, occupancy; occupancy needs the standard start)")
		f.IntVar(&bootstrapFrames, "bootstrap-frames", 300, "frames to search for a board before template learning gives up")
	}
	analyzeCmd.Flags().Float64Var(&sampleRate, "sample-rate", -1, "frames analysed per second (0 = every frame)")
	liveCmd.Flags().DurationVar(&liveDuration, "duration", 0, "stop after this long (0 = until interrupted)")
	liveCmd.Flags().Float64Var(&diffThreshold, "diff-threshold", 2, "skip captures whose mean gray change is at or below this")
}

// pipelineConfig applies the command-line overrides to the configured pipeline
func pipelineConfig(cmd *cobra.Command) (pipeline.Config, error) {
	if orientation != "" {
		cfg.Vision.Orientation = orientation
	}
	if classifierKind != "" {
		cfg.Recognition.Classifier = classifierKind
	}
	if cmd.Flags().Changed("sample-rate") {
		cfg.Vision.SampleRate = sampleRate
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return cfg.Pipeline()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]
	done := logger.StartOperation(log, "analyze", zap.String("video", path))

	err := func() error {
		pc, err := pipelineConfig(cmd)
		if err != nil {
			return err
		}

		info, err := vision.GetVideoInfo(path)
		if err != nil {
			return fmt.Errorf("failed to read video info: %w", err)
		}
		stride := frame.FrameInterval(info.FPS, pc.SampleRate)
		if stride > 1 {
			// The decoder already skips to the sample rate.
			pc.SampleRate = 0
		}
		cli.PrintModeHeader("analyze", fmt.Sprintf("%s: %s, analysing every %d frame(s)", filepath.Base(path), info, stride))

		src, err := vision.NewVideoSource(path, stride)
		if err != nil {
			return err
		}
		defer src.Close()

		return analyzeSource(cmd.Context(), src, pc, filepath.Base(path))
	}()

	done(err)
	return err
}

func runLive(cmd *cobra.Command, args []string) error {
	done := logger.StartOperation(log, "live")

	err := func() error {
		pc, err := pipelineConfig(cmd)
		if err != nil {
			return err
		}
		region := vision.CaptureRegion(cfg.Vision.ScreenRegion)
		src, err := vision.NewScreenSource(region, cfg.Vision.Display, cfg.Vision.CaptureFPS, diffThreshold, log.Named("capture"))
		if err != nil {
			return err
		}
		defer src.Close()

		cli.PrintModeHeader("live", fmt.Sprintf("Capturing %v at %d fps. Press Ctrl+C to stop.", src.Region(), cfg.Vision.CaptureFPS))

		ctx := cmd.Context()
		if liveDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, liveDuration)
			defer cancel()
		}
		return analyzeSource(ctx, src, pc, "screen")
	}()

	done(err)
	return err
}

// analyzeSource runs a session over src, then prints and exports the game.
// Cancellation ends the run normally so that live capture can be stopped.
func analyzeSource(ctx context.Context, src frame.Source, pc pipeline.Config, source string) error {
	detector, err := vision.NewContourDetector(vision.DefaultConfig(), log.Named("vision"))
	if err != nil {
		return err
	}

	classifier, src, err := newClassifier(ctx, src, detector, pc)
	if err != nil {
		detector.Close()
		return err
	}
	if c, ok := classifier.(io.Closer); ok {
		defer c.Close()
	}

	session, err := pipeline.NewSession(pc, pipeline.Options{
		Detector:   detector,
		Classifier: classifier,
		Metrics:    pipeMetrics,
		Logger:     log,
	})
	if err != nil {
		detector.Close()
		return err
	}
	defer session.Close()

	err = session.Run(ctx, src, func(res pipeline.Result) error {
		cli.PrintResult(res, verbose)
		return nil
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		cli.PrintStatus("Capture stopped", iface.LevelInfo)
		err = nil
	}
	if err != nil {
		return err
	}
	if net, ok := classifier.(*model.SquareNet); ok {
		st := net.Stats()
		log.Info("Square classifier usage",
			zap.Int64("inferences", st.TotalInferences),
			zap.Duration("avg_latency", st.AverageLatency),
			zap.Int64("errors", st.ErrorCount))
	}

	cli.PrintGameSummary(session.Game(), session.Stats())
	return exportGame(session, source)
}

// newClassifier builds the configured square classifier. Template learning
// consumes frames from src, so callers must continue with the returned source.
func newClassifier(ctx context.Context, src frame.Source, detector locator.Detector, pc pipeline.Config) (extractor.Classifier, frame.Source, error) {
	switch cfg.Recognition.Classifier {
	case config.ClassifierTemplate:
		start, err := board.ParseFEN(startFEN)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start FEN: %w", err)
		}
		tc := extractor.NewTemplateClassifier()
		replay, err := pipeline.LearnTemplates(ctx, src, detector, pc, tc, start.Placement, bootstrapFrames, log.Named("bootstrap"))
		if err != nil {
			return nil, nil, err
		}
		return tc, replay, nil

	case config.ClassifierSquareNet:
		net, err := model.LoadSquareNet(cfg.Recognition.ModelPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load square classifier (run `boardscribe train` first): %w", err)
		}
		log.Info("Square classifier loaded", zap.String("path", cfg.Recognition.ModelPath), zap.Stringer("model", net.Info()))
		return net, src, nil

	case config.ClassifierOccupancy:
		start, err := board.ParseFEN(startFEN)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start FEN: %w", err)
		}
		if start.Placement != board.StartingPosition().Placement {
			return nil, nil, fmt.Errorf("occupancy classifier cannot read piece types, so it only follows games from the standard start")
		}
		return extractor.NewOccupancyClassifier(), src, nil
	}
	return nil, nil, fmt.Errorf("unknown classifier %q", cfg.Recognition.Classifier)
}

// exportGame writes the requested output files and archives the game
func exportGame(session *pipeline.Session, source string) error {
	if pgnOut != "" {
		if err := writeFile(pgnOut, session.PGN()); err != nil {
			return err
		}
		cli.PrintStatus("PGN written to "+pgnOut, iface.LevelSuccess)
	}
	if fenOut != "" {
		if err := writeFile(fenOut, session.FEN()+"\n"); err != nil {
			return err
		}
		cli.PrintStatus("FEN written to "+fenOut, iface.LevelSuccess)
	}
	if pgnOut == "" && !quiet {
		fmt.Println()
		fmt.Print(session.PGN())
	}

	if !archive {
		return nil
	}
	if session.Game().Len() == 0 && len(session.Game().Discontinuities()) == 0 {
		cli.PrintStatus("No moves recorded, nothing archived", iface.LevelWarning)
		return nil
	}
	return archiveGame(storage.RecordFromGame(session.Game(), source))
}

func archiveGame(rec storage.GameRecord) error {
	store, err := storage.NewGameStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	saved, err := store.Save(rec)
	if err != nil {
		return err
	}
	log.Info("Game archived", zap.String("id", saved.ID), zap.Int("plies", saved.Plies))
	cli.PrintStatus("Game archived as "+saved.ID, iface.LevelSuccess)
	return nil
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0644)
}
