package data

import (
	"context"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/model"
	"github.com/thyrook/boardscribe/internal/normalizer"
	"github.com/thyrook/boardscribe/internal/synth"
)

// AugmentationConfig controls how training boards are rendered
type AugmentationConfig struct {
	// Size is the rendered board side in pixels (multiple of 8)
	Size int

	// AllOrientations renders each placement with rank 1 on every edge
	AllOrientations bool

	// PaletteJitter is the maximum gray-level shift applied to each palette entry
	PaletteJitter int

	// Variants is how many jittered palettes each placement is rendered with
	Variants int

	Seed    int64
	Workers int
}

// DefaultAugmentationConfig returns sensible defaults
func DefaultAugmentationConfig() AugmentationConfig {
	return AugmentationConfig{
		Size:            256,
		AllOrientations: true,
		PaletteJitter:   12,
		Variants:        2,
		Seed:            1,
	}
}

// UniquePlacements collects distinct placements from scripts, keeping every
// stride-th ply of each game
func UniquePlacements(scripts []Script, stride int) []board.Placement {
	if stride < 1 {
		stride = 1
	}
	seen := make(map[board.Placement]bool)
	var out []board.Placement
	for _, s := range scripts {
		for i, pl := range s.Placements() {
			if i%stride != 0 && i != len(s.Positions)-1 {
				continue
			}
			if !seen[pl] {
				seen[pl] = true
				out = append(out, pl)
			}
		}
	}
	return out
}

// JitterPalette shifts every gray level of p by up to ±amount
func JitterPalette(p synth.Palette, amount int, rng *rand.Rand) synth.Palette {
	if amount <= 0 {
		return p
	}
	shift := func(v uint8) uint8 {
		d := rng.Intn(2*amount+1) - amount
		return uint8(min(255, max(0, int(v)+d)))
	}
	return synth.Palette{
		LightSquare: shift(p.LightSquare),
		DarkSquare:  shift(p.DarkSquare),
		WhiteBody:   shift(p.WhiteBody),
		WhiteTrim:   shift(p.WhiteTrim),
		BlackBody:   shift(p.BlackBody),
		BlackTrim:   shift(p.BlackTrim),
		Background:  shift(p.Background),
	}
}

// RenderSamples renders each placement under the configured augmentations
// and labels every square patch
func RenderSamples(ctx context.Context, placements []board.Placement, config AugmentationConfig) ([]model.Sample, error) {
	orientations := []board.Orientation{board.Rank1Bottom}
	if config.AllOrientations {
		orientations = board.Orientations
	}
	variants := max(1, config.Variants)
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rng := rand.New(rand.NewSource(config.Seed))
	palettes := make([][]synth.Palette, len(placements))
	for i := range placements {
		palettes[i] = make([]synth.Palette, variants)
		palettes[i][0] = synth.DefaultPalette()
		for v := 1; v < variants; v++ {
			palettes[i][v] = JitterPalette(synth.DefaultPalette(), config.PaletteJitter, rng)
		}
	}

	results := make([][]model.Sample, len(placements))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pl := range placements {
		i, pl := i, pl
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var samples []model.Sample
			for _, pal := range palettes[i] {
				r := &synth.Renderer{Palette: pal}
				for _, o := range orientations {
					img := r.Board(pl, config.Size, o)
					nb := normalizer.NormalizedBoard{Image: img, Size: config.Size, Orientation: o}
					samples = append(samples, model.SamplesFromBoard(nb, pl)...)
				}
			}
			results[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.Sample
	for _, s := range results {
		out = append(out, s...)
	}
	return out, nil
}
