package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/data"
	"github.com/thyrook/boardscribe/internal/iface"
	"github.com/thyrook/boardscribe/internal/logger"
	"github.com/thyrook/boardscribe/internal/model"
)

var (
	trainPGNs     []string
	trainStride   int
	trainOut      string
	trainAug      = data.DefaultAugmentationConfig()
	trainEpochs   int
	trainMaxBoard int
)

func initTrainFlags() {
	f := trainCmd.Flags()
	f.StringSliceVar(&trainPGNs, "pgn", nil, "PGN files whose positions are rendered for training (default: starting position only)")
	f.IntVar(&trainStride, "stride", 4, "use every n-th position of each game")
	f.IntVar(&trainMaxBoard, "max-boards", 500, "cap on distinct placements (0 = no cap)")
	f.StringVarP(&trainOut, "out", "o", "", "model output path (default: recognition.model_path)")
	f.IntVar(&trainEpochs, "epochs", 0, "override training.epochs")
	f.IntVar(&trainAug.Size, "size", trainAug.Size, "rendered board size in pixels")
	f.IntVar(&trainAug.Variants, "variants", trainAug.Variants, "palette variants per placement")
	f.IntVar(&trainAug.PaletteJitter, "jitter", trainAug.PaletteJitter, "palette jitter in gray levels")
	f.BoolVar(&trainAug.AllOrientations, "all-orientations", trainAug.AllOrientations, "render every board orientation")
}

func runTrain(cmd *cobra.Command, args []string) error {
	done := logger.StartOperation(log, "train", zap.Strings("pgn", trainPGNs))

	err := func() error {
		placements := []board.Placement{board.StartingPosition().Placement}
		if len(trainPGNs) > 0 {
			var scripts []data.Script
			for _, p := range trainPGNs {
				s, err := data.LoadPGN(p)
				if err != nil {
					return err
				}
				scripts = append(scripts, s...)
			}
			placements = data.UniquePlacements(scripts, trainStride)
		}
		if trainMaxBoard > 0 && len(placements) > trainMaxBoard {
			placements = placements[:trainMaxBoard]
		}

		tc := cfg.Trainer()
		if trainEpochs > 0 {
			tc.Epochs = trainEpochs
		}
		trainAug.Seed = tc.Seed
		trainAug.Workers = cfg.Recognition.Workers

		cli.PrintModeHeader("train", fmt.Sprintf("Rendering %d placement(s), %d epoch(s)", len(placements), tc.Epochs))

		samples, err := data.RenderSamples(cmd.Context(), placements, trainAug)
		if err != nil {
			return err
		}
		counts := model.ClassCounts(samples)
		log.Info("Training samples rendered",
			zap.Int("samples", len(samples)),
			zap.Int("empty", counts[0]))

		trainer, err := model.NewTrainer(tc, log.Named("trainer"))
		if err != nil {
			return err
		}
		defer trainer.Close()

		stats, err := trainer.Train(samples)
		if err != nil {
			return err
		}
		for _, s := range stats {
			cli.PrintTrainingStats(s, tc.Epochs)
		}

		net, err := trainer.Export()
		if err != nil {
			return err
		}
		defer net.Close()
		log.Info("Model exported", zap.Stringer("model", net.Info()))

		out := trainOut
		if out == "" {
			out = cfg.Recognition.ModelPath
		}
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return err
		}
		if err := net.SaveFile(out); err != nil {
			return err
		}

		final := stats[len(stats)-1]
		cli.PrintStatus(fmt.Sprintf("Model saved to %s (accuracy %.1f%%)", out, final.Accuracy*100), iface.LevelSuccess)
		return nil
	}()

	done(err)
	return err
}
