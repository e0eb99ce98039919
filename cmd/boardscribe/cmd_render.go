package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/data"
	"github.com/thyrook/boardscribe/internal/geom"
	"github.com/thyrook/boardscribe/internal/iface"
	"github.com/thyrook/boardscribe/internal/logger"
	"github.com/thyrook/boardscribe/internal/synth"
)

var (
	renderGame        int
	renderPly         int
	renderOut         string
	renderDir         string
	renderWidth       int
	renderHeight      int
	renderTilt        float64
	renderOrientation string
)

func initRenderFlags() {
	f := renderCmd.Flags()
	f.IntVar(&renderGame, "game", 1, "game number within the PGN")
	f.IntVar(&renderPly, "ply", -1, "render the position after this many plies (-1 = final)")
	f.StringVarP(&renderOut, "out", "o", "board.png", "output image for a single position")
	f.StringVar(&renderDir, "frames", "", "render every position into this directory instead")
	f.IntVar(&renderWidth, "width", 800, "frame width")
	f.IntVar(&renderHeight, "height", 600, "frame height")
	f.Float64Var(&renderTilt, "tilt", 0, "pull the far edge inward by this many pixels")
	f.StringVar(&renderOrientation, "orientation", "bottom", "rank 1 edge (bottom, top, left, right)")
}

// boardRegion centres a board in the frame, leaving a margin, with the far
// edge narrowed by tilt pixels on each side
func boardRegion(width, height int, tilt float64) geom.Quad {
	side := float64(min(width, height)) * 0.8
	x0 := (float64(width) - side) / 2
	y0 := (float64(height) - side) / 2
	q := geom.Rect(x0, y0, x0+side, y0+side)
	q[0].X += tilt
	q[1].X -= tilt
	return q
}

func runRender(cmd *cobra.Command, args []string) error {
	path := args[0]
	done := logger.StartOperation(log, "render", zap.String("pgn", path))

	err := func() error {
		scripts, err := data.LoadPGN(path)
		if err != nil {
			return err
		}
		if renderGame < 1 || renderGame > len(scripts) {
			return fmt.Errorf("game %d out of range (file has %d)", renderGame, len(scripts))
		}
		script := scripts[renderGame-1]

		o, err := board.ParseOrientation(renderOrientation)
		if err != nil {
			return err
		}
		if o == board.UnknownOrientation {
			o = board.Rank1Bottom
		}
		region := boardRegion(renderWidth, renderHeight, renderTilt)
		if !region.IsConvex() {
			return fmt.Errorf("tilt %.0f is too large for a %dx%d frame", renderTilt, renderWidth, renderHeight)
		}
		r := synth.NewRenderer()

		if renderDir == "" {
			ply := renderPly
			if ply < 0 || ply >= len(script.Positions) {
				ply = len(script.Positions) - 1
			}
			img, err := r.Frame(script.Positions[ply].Placement, o, renderWidth, renderHeight, region)
			if err != nil {
				return err
			}
			if err := writePNG(renderOut, img); err != nil {
				return err
			}
			cli.PrintBoard(script.Positions[ply].Placement)
			cli.PrintStatus(fmt.Sprintf("Ply %d written to %s", ply, renderOut), iface.LevelSuccess)
			return nil
		}

		if err := os.MkdirAll(renderDir, 0755); err != nil {
			return err
		}
		return renderFrames(cmd.Context(), r, script.Placements(), o, region)
	}()

	done(err)
	return err
}

// renderFrames writes one numbered PNG per placement
func renderFrames(ctx context.Context, r *synth.Renderer, placements []board.Placement, o board.Orientation, region geom.Quad) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	var written atomic.Int64
	for i, pl := range placements {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := r.Frame(pl, o, renderWidth, renderHeight, region)
			if err != nil {
				return err
			}
			if err := writePNG(filepath.Join(renderDir, fmt.Sprintf("frame_%04d.png", i)), img); err != nil {
				return err
			}
			written.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	cli.PrintProgressBar(int(written.Load()), len(placements), "frames")
	cli.PrintStatus(fmt.Sprintf("%d frames written to %s", written.Load(), renderDir), iface.LevelSuccess)
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
