package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/extractor"
	"github.com/thyrook/boardscribe/internal/frame"
	"github.com/thyrook/boardscribe/internal/locator"
	"github.com/thyrook/boardscribe/internal/normalizer"
)

// ErrNoTemplateFrame is returned when no frame yields a usable board for template learning
var ErrNoTemplateFrame = errors.New("no board found to learn templates from")

// LearnTemplates reads frames from src until one shows a located board
// with a settled orientation, and teaches tc that this board shows pl.
// At most maxFrames frames are read. The returned source replays every
// consumed frame before continuing with src, so a session sees the full stream.
func LearnTemplates(ctx context.Context, src frame.Source, detector locator.Detector, config Config,
	tc *extractor.TemplateClassifier, pl board.Placement, maxFrames int, logger *zap.Logger) (frame.Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxFrames < 1 {
		maxFrames = 1
	}

	// the session owns the detector, so the bootstrap locator must not close it
	loc := locator.New(locator.DetectorFunc(detector.Detect), config.Locator, logger.Named("locator"))
	norm := normalizer.New(config.Normalizer, logger.Named("normalizer"))

	var consumed []frame.Frame
	for len(consumed) < maxFrames {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
		consumed = append(consumed, f)

		det, err := loc.Locate(ctx, f.Image)
		if err != nil {
			if errors.Is(err, locator.ErrBoardNotFound) || errors.Is(err, locator.ErrBoardLost) {
				continue
			}
			return nil, err
		}
		nb, err := norm.Normalize(f.Image, det.Region)
		if errors.Is(err, normalizer.ErrOrientationPending) {
			continue
		}
		if err != nil {
			return nil, err
		}

		tc.Learn(nb, pl)
		logger.Info("Templates learned",
			zap.Int64("frame", f.Index),
			zap.Stringer("rank1", nb.Orientation),
			zap.Float64("confidence", det.Confidence))
		return frame.Replay(consumed, src), nil
	}
	return nil, fmt.Errorf("after %d frames: %w", len(consumed), ErrNoTemplateFrame)
}
