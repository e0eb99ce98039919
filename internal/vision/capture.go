package vision

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/thyrook/boardscribe/internal/frame"
)

// ScreenSource captures a screen region at a fixed rate. It implements frame.Source.
type ScreenSource struct {
	mu     sync.Mutex
	region image.Rectangle
	ticker *time.Ticker
	done   chan struct{}
	start  time.Time
	index  int64
	closed bool

	// diffThreshold drops captures whose mean gray difference from the last
	// emitted capture is at or below it (0 emits everything)
	diffThreshold float64
	lastGray      gocv.Mat
	hasLast       bool

	capture func(image.Rectangle) (*image.RGBA, error)
	logger  *zap.Logger
}

// NewScreenSource creates a capture source. An empty region captures the
// whole of the given display.
func NewScreenSource(region CaptureRegion, display, fps int, diffThreshold float64, logger *zap.Logger) (*ScreenSource, error) {
	if fps < 1 || fps > 60 {
		return nil, fmt.Errorf("invalid FPS: %d (must be 1-60)", fps)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rect := region.ToRectangle()
	if region.Empty() {
		if n := screenshot.NumActiveDisplays(); display < 0 || display >= n {
			return nil, fmt.Errorf("display %d not available (%d active)", display, n)
		}
		rect = screenshot.GetDisplayBounds(display)
	}

	return &ScreenSource{
		region:        rect,
		ticker:        time.NewTicker(time.Second / time.Duration(fps)),
		done:          make(chan struct{}),
		start:         time.Now(),
		diffThreshold: diffThreshold,
		lastGray:      gocv.NewMat(),
		capture:       screenshot.CaptureRect,
		logger:        logger,
	}, nil
}

// Region returns the captured screen rectangle
func (s *ScreenSource) Region() image.Rectangle { return s.region }

// Next implements frame.Source. It blocks until the next tick that yields a
// changed capture.
func (s *ScreenSource) Next(ctx context.Context) (frame.Frame, error) {
	for {
		select {
		case <-ctx.Done():
			return frame.Frame{}, ctx.Err()
		case <-s.done:
			return frame.Frame{}, io.EOF
		case <-s.ticker.C:
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return frame.Frame{}, io.EOF
		}
		img, err := s.capture(s.region)
		if err != nil {
			s.mu.Unlock()
			return frame.Frame{}, fmt.Errorf("failed to capture screen: %w", err)
		}
		changed, diff := s.changed(img)
		if !changed {
			s.mu.Unlock()
			s.logger.Debug("Capture unchanged", zap.Float64("diff", diff))
			continue
		}
		f := frame.Frame{
			Image:     img,
			Timestamp: time.Since(s.start),
			Index:     s.index,
		}
		s.index++
		s.mu.Unlock()
		return f, nil
	}
}

// changed checks if the capture differs from the last emitted one; callers hold mu
func (s *ScreenSource) changed(img *image.RGBA) (bool, float64) {
	if s.diffThreshold <= 0 {
		return true, 0
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return true, 0
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	if !s.hasLast || s.lastGray.Rows() != gray.Rows() || s.lastGray.Cols() != gray.Cols() {
		gray.CopyTo(&s.lastGray)
		s.hasLast = true
		return true, 255
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(s.lastGray, gray, &diff)
	mean := diff.Mean().Val1

	if mean <= s.diffThreshold {
		return false, mean
	}
	gray.CopyTo(&s.lastGray)
	return true, mean
}

// Close stops capturing
func (s *ScreenSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.ticker.Stop()
	close(s.done)
	return s.lastGray.Close()
}
