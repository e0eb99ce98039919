// Package locator finds the chessboard quadrilateral in each frame and keeps
// it stable across frames.
package locator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/thyrook/boardscribe/internal/geom"
)

var (
	// ErrBoardNotFound means no acceptable board region exists for the frame
	ErrBoardNotFound = errors.New("board not found")

	// ErrBoardLost is reported once when misses exceed the lost threshold.
	// It wraps ErrBoardNotFound.
	ErrBoardLost = fmt.Errorf("board lost: %w", ErrBoardNotFound)
)

// Detector extracts quadrilateral board candidates from an image
type Detector interface {
	// Detect returns candidate quads in image coordinates.
	// Returns an empty slice if nothing board-like is found.
	Detect(ctx context.Context, img image.Image) ([]geom.Quad, error)

	// Close releases any resources held by the detector.
	Close() error
}

// DetectorFunc adapts a function to Detector
type DetectorFunc func(ctx context.Context, img image.Image) ([]geom.Quad, error)

// Detect implements Detector
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]geom.Quad, error) {
	return f(ctx, img)
}

// Close implements Detector
func (f DetectorFunc) Close() error { return nil }

// Config holds board localization parameters
type Config struct {
	// MinAreaFraction and MaxAreaFraction bound the board side relative to
	// the frame side; the accepted area fraction is their square.
	MinAreaFraction float64
	MaxAreaFraction float64

	// ConfidenceFloor is the minimum candidate score (0.0-1.0).
	ConfidenceFloor float64

	// MinSide is the shortest acceptable side length in pixels.
	MinSide float64

	SmoothingAlpha float64
	ResetThreshold float64

	// GraceFrames is how many consecutive misses reuse the last region.
	GraceFrames int

	// LostAfterFrames is the miss count after which the board is declared lost.
	LostAfterFrames int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinAreaFraction: 0.2,
		MaxAreaFraction: 0.9,
		ConfidenceFloor: 0.5,
		MinSide:         16,
		SmoothingAlpha:  0.5,
		ResetThreshold:  0.25,
		GraceFrames:     5,
		LostAfterFrames: 30,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.MinAreaFraction <= 0 || c.MaxAreaFraction > 1 || c.MinAreaFraction >= c.MaxAreaFraction {
		return fmt.Errorf("area fractions must satisfy 0 < min < max <= 1, got %.2f..%.2f",
			c.MinAreaFraction, c.MaxAreaFraction)
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence floor must be between 0 and 1, got %.2f", c.ConfidenceFloor)
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		return fmt.Errorf("smoothing alpha must be in (0, 1], got %.2f", c.SmoothingAlpha)
	}
	if c.ResetThreshold <= 0 {
		return fmt.Errorf("reset threshold must be positive, got %.2f", c.ResetThreshold)
	}
	if c.GraceFrames < 0 || c.LostAfterFrames < c.GraceFrames {
		return fmt.Errorf("need 0 <= grace frames (%d) <= lost-after frames (%d)", c.GraceFrames, c.LostAfterFrames)
	}
	return nil
}

// Detection is the board region chosen for a frame
type Detection struct {
	Region     geom.Quad
	Confidence float64

	// Reused is set when the region is carried over from earlier frames.
	Reused bool

	// Reacquired is set on the first detection after the board was lost.
	Reacquired bool

	// Reset is set when smoothing restarted (first sighting or camera move).
	Reset bool
}

// Locator owns the per-session corner smoothing and miss accounting.
// Not safe for concurrent use; the pipeline serializes frames.
type Locator struct {
	detector Detector
	config   Config
	logger   *zap.Logger

	smoother   *geom.Smoother
	lastConf   float64
	misses     int
	lost       bool
	everLocked bool
}

// New creates a locator
func New(detector Detector, config Config, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{
		detector: detector,
		config:   config,
		logger:   logger,
		smoother: geom.NewSmoother(config.SmoothingAlpha, config.ResetThreshold),
	}
}

// Locate returns the board region for img. ErrBoardNotFound (or, once,
// ErrBoardLost) is returned when no region can be used for this frame.
func (l *Locator) Locate(ctx context.Context, img image.Image) (Detection, error) {
	candidates, err := l.detector.Detect(ctx, img)
	if err != nil {
		return Detection{}, fmt.Errorf("board detection failed: %w", err)
	}

	best, score, ok := l.Best(img.Bounds(), candidates)
	if !ok {
		return l.miss()
	}

	reacquired := l.lost
	l.misses = 0
	l.lost = false
	l.everLocked = true

	region, reset := l.smoother.Update(best)
	l.lastConf = score

	if reacquired {
		l.logger.Info("Board reacquired", zap.Float64("confidence", score))
	} else if reset {
		l.logger.Debug("Board smoothing restarted", zap.Stringer("region", region))
	}

	return Detection{
		Region:     region,
		Confidence: score,
		Reacquired: reacquired,
		Reset:      reset,
	}, nil
}

func (l *Locator) miss() (Detection, error) {
	l.misses++

	if region, ok := l.smoother.Current(); ok && !l.lost && l.misses <= l.config.GraceFrames {
		l.logger.Debug("Reusing last board region", zap.Int("misses", l.misses))
		return Detection{Region: region, Confidence: l.lastConf, Reused: true}, nil
	}

	if l.everLocked && !l.lost && l.misses > l.config.LostAfterFrames {
		l.lost = true
		l.smoother.Reset()
		l.logger.Warn("Board lost", zap.Int("misses", l.misses))
		return Detection{}, ErrBoardLost
	}

	return Detection{}, ErrBoardNotFound
}

// Best scores candidates against the frame bounds and returns the highest
// scoring one at or above the confidence floor.
func (l *Locator) Best(bounds image.Rectangle, candidates []geom.Quad) (geom.Quad, float64, bool) {
	var (
		best      geom.Quad
		bestScore = -1.0
	)
	for _, c := range candidates {
		s, ok := l.Score(bounds, c)
		if !ok {
			continue
		}
		if s > bestScore {
			best, bestScore = c, s
		}
	}
	if bestScore < l.config.ConfidenceFloor {
		return geom.Quad{}, 0, false
	}
	return best, bestScore, true
}

// Score rates a candidate in [0, 1] as 0.7 squareness + 0.3 size.
// ok is false for non-convex, degenerate or out-of-range candidates.
func (l *Locator) Score(bounds image.Rectangle, q geom.Quad) (float64, bool) {
	frameArea := float64(bounds.Dx() * bounds.Dy())
	if frameArea <= 0 {
		return 0, false
	}
	if !q.IsConvex() || q.IsDegenerate(l.config.MinSide) {
		return 0, false
	}

	frac := q.Area() / frameArea
	minFrac := l.config.MinAreaFraction * l.config.MinAreaFraction
	maxFrac := l.config.MaxAreaFraction * l.config.MaxAreaFraction
	if frac < minFrac || frac > maxFrac {
		return 0, false
	}

	size := math.Min(1, math.Sqrt(frac)/l.config.MaxAreaFraction)
	return 0.7*q.Squareness() + 0.3*size, true
}

// Misses returns the current count of consecutive frames without a detection
func (l *Locator) Misses() int { return l.misses }

// Lost reports whether the board is currently considered lost
func (l *Locator) Lost() bool { return l.lost }

// Reset clears smoothing and miss state
func (l *Locator) Reset() {
	l.smoother.Reset()
	l.misses = 0
	l.lost = false
	l.everLocked = false
	l.lastConf = 0
}

// Close releases the detector
func (l *Locator) Close() error {
	return l.detector.Close()
}
