package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thyrook/boardscribe/internal/data"
	"github.com/thyrook/boardscribe/internal/extractor"
	"github.com/thyrook/boardscribe/internal/iface"
	"github.com/thyrook/boardscribe/internal/logger"
	"github.com/thyrook/boardscribe/internal/pipeline"
	"github.com/thyrook/boardscribe/internal/storage"
)

var (
	simHold    int
	simArchive bool
)

func initSimulateFlags() {
	f := simulateCmd.Flags()
	f.IntVar(&simHold, "hold", 2, "observations of each position, as a camera would repeat it")
	f.BoolVar(&simArchive, "archive", false, "store every replayed game in the archive")
	f.BoolVarP(&verbose, "verbose", "v", false, "print every observation result")
}

// simulation is the outcome of replaying one scripted game
type simulation struct {
	script   data.Script
	session  *pipeline.Session
	moves    int
	resyncs  int
	match    bool
	finalFEN string
}

func runSimulate(cmd *cobra.Command, args []string) error {
	path := args[0]
	done := logger.StartOperation(log, "simulate", zap.String("pgn", path))

	err := func() error {
		scripts, err := data.LoadPGN(path)
		if err != nil {
			return err
		}
		pc, err := cfg.Pipeline()
		if err != nil {
			return err
		}
		cli.PrintModeHeader("simulate", fmt.Sprintf("Replaying %d game(s) from %s", len(scripts), path))

		var rows [][]string
		failed := 0
		for i, script := range scripts {
			sim, err := simulate(cmd.Context(), pc, script)
			if err != nil {
				return fmt.Errorf("game %d: %w", i+1, err)
			}
			status := "ok"
			if !sim.match {
				status = "MISMATCH"
				failed++
				log.Warn("Replay diverged",
					zap.Int("game", i+1),
					zap.String("want", script.Final().FEN()),
					zap.String("got", sim.finalFEN))
			}
			rows = append(rows, []string{
				fmt.Sprint(i + 1),
				script.Headers.White + " - " + script.Headers.Black,
				fmt.Sprintf("%d/%d", sim.moves, len(script.Moves)),
				fmt.Sprint(sim.resyncs),
				status,
			})
			cli.PrintProgressBar(i+1, len(scripts), "games")

			if simArchive {
				if err := archiveGame(storage.RecordFromGame(sim.session.Game(), path)); err != nil {
					return err
				}
			}
		}

		cli.PrintTable([]string{"GAME", "PLAYERS", "MOVES", "RESYNCS", "FEN"}, rows)
		if failed > 0 {
			return fmt.Errorf("%d of %d game(s) did not reproduce the final position", failed, len(scripts))
		}
		cli.PrintStatus(fmt.Sprintf("All %d game(s) reproduced", len(scripts)), iface.LevelSuccess)
		return nil
	}()

	done(err)
	return err
}

// simulate feeds every position of script through a session as a perfect
// reading and compares the exported FEN with the recorded final position
func simulate(ctx context.Context, pc pipeline.Config, script data.Script) (simulation, error) {
	pc.Headers = script.Headers
	pc.Validator.InitialTurn = script.Start().Turn

	session, err := pipeline.NewSession(pc, pipeline.Options{Metrics: pipeMetrics, Logger: log})
	if err != nil {
		return simulation{}, err
	}
	defer session.Close()

	hold := max(1, simHold)
	for _, pl := range script.Placements() {
		reading := extractor.ReadingFromPlacement(pl)
		for range hold {
			res, err := session.ObservePosition(ctx, reading)
			if err != nil {
				return simulation{}, err
			}
			cli.PrintResult(res, verbose)
		}
	}

	game := session.Game()
	return simulation{
		script:   script,
		session:  session,
		moves:    game.Len(),
		resyncs:  len(game.Discontinuities()),
		match:    session.FEN() == script.Final().FEN(),
		finalFEN: session.FEN(),
	}, nil
}
