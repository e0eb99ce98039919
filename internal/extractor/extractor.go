// Package extractor reads a rectified board square by square through a
// pluggable classifier.
package extractor

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thyrook/boardscribe/internal/board"
)

// Classification is a classifier's verdict for one square patch
type Classification struct {
	Piece      board.Piece
	Confidence float64

	// ColorOnly marks an occupied square whose piece type is unknown; only
	// the color of Piece carries information.
	ColorOnly bool
}

// Classifier maps a square patch to a piece estimate. Implementations must
// be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, patch image.Image) (Classification, error)
}

// ClassifierFunc adapts a function to Classifier
type ClassifierFunc func(ctx context.Context, patch image.Image) (Classification, error)

// Classify implements Classifier
func (f ClassifierFunc) Classify(ctx context.Context, patch image.Image) (Classification, error) {
	return f(ctx, patch)
}

// PatchSource yields the image patch of a square
type PatchSource interface {
	Patch(sq board.Square) image.Image
}

// SquareReading is the extracted state of one square
type SquareReading struct {
	Square     board.Square
	Piece      board.Piece
	Confidence float64

	// Uncertain is set when confidence fell below the floor; Piece is then
	// the classifier's best guess and must not be trusted.
	Uncertain bool

	ColorOnly bool
}

// Reading holds all 64 square readings, indexed by square
type Reading [64]SquareReading

// Placement returns the read pieces, with uncertain squares left empty
func (r Reading) Placement() board.Placement {
	var pl board.Placement
	for i, sr := range r {
		if !sr.Uncertain {
			pl[i] = sr.Piece
		}
	}
	return pl
}

// UncertainSquares lists squares marked uncertain
func (r Reading) UncertainSquares() []board.Square {
	var out []board.Square
	for _, sr := range r {
		if sr.Uncertain {
			out = append(out, sr.Square)
		}
	}
	return out
}

// ColorOnly reports whether any certain square carries only a color, in
// which case the reading is an occupancy pattern rather than a placement.
func (r Reading) ColorOnly() bool {
	for _, sr := range r {
		if sr.ColorOnly && !sr.Uncertain {
			return true
		}
	}
	return false
}

// MeanConfidence returns the average confidence over all squares
func (r Reading) MeanConfidence() float64 {
	var sum float64
	for _, sr := range r {
		sum += sr.Confidence
	}
	return sum / float64(len(r))
}

// ReadingFromPlacement builds a fully confident reading. Used for scripted input.
func ReadingFromPlacement(pl board.Placement) Reading {
	var r Reading
	for i := range r {
		r[i] = SquareReading{Square: board.Square(i), Piece: pl[i], Confidence: 1}
	}
	return r
}

// Config holds extraction parameters
type Config struct {
	// ConfidenceFloor marks readings below it as uncertain.
	ConfidenceFloor float64

	// Workers bounds concurrent classifications (0 = GOMAXPROCS).
	Workers int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{ConfidenceFloor: 0.3, Workers: 0}
}

// Extractor fans classification out across squares
type Extractor struct {
	classifier Classifier
	config     Config
	logger     *zap.Logger
}

// New creates an extractor
func New(classifier Classifier, config Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	return &Extractor{classifier: classifier, config: config, logger: logger}
}

// Extract classifies all 64 squares. Either every square is read or an error
// is returned; partial readings never escape.
func (e *Extractor) Extract(ctx context.Context, b PatchSource) (Reading, error) {
	var reading Reading

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for i := 0; i < 64; i++ {
		sq := board.Square(i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := e.classifier.Classify(gctx, b.Patch(sq))
			if err != nil {
				return fmt.Errorf("failed to classify %s: %w", sq, err)
			}
			conf := clamp01(c.Confidence)
			reading[sq] = SquareReading{
				Square:     sq,
				Piece:      c.Piece,
				Confidence: conf,
				Uncertain:  conf < e.config.ConfidenceFloor,
				ColorOnly:  c.ColorOnly && c.Piece != board.Empty,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Reading{}, err
	}

	if n := len(reading.UncertainSquares()); n > 0 {
		e.logger.Debug("Uncertain squares in reading", zap.Int("count", n))
	}
	return reading, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
