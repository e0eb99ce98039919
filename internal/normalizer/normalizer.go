// Package normalizer rectifies the located board region into a fixed-size
// top-down image and locks its a1-h8 orientation for the session.
package normalizer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/geom"
)

// ErrOrientationPending means the orientation has not been calibrated yet;
// the returned board must not be read as a position.
var ErrOrientationPending = errors.New("orientation not yet calibrated")

// Config holds normalization parameters
type Config struct {
	// Size is the side of the normalized image in pixels (multiple of 8).
	Size int

	// Orientation overrides calibration when not UnknownOrientation.
	Orientation board.Orientation

	// CalibrationAttempts is how many frames may fail calibration before
	// falling back to rank 1 at the bottom.
	CalibrationAttempts int

	// OccupancyThreshold is the intensity standard deviation above which a cell counts as occupied.
	OccupancyThreshold float64

	// BandMinOccupied is the minimum occupied cells in each 16-cell home band.
	BandMinOccupied int

	// MiddleMaxOccupied is the maximum occupied cells in the 32 middle cells.
	MiddleMaxOccupied int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Size:                512,
		CalibrationAttempts: 30,
		OccupancyThreshold:  28,
		BandMinOccupied:     14,
		MiddleMaxOccupied:   4,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.Size < 64 || c.Size%8 != 0 {
		return fmt.Errorf("normalized size must be a multiple of 8 and at least 64, got %d", c.Size)
	}
	if c.CalibrationAttempts < 1 {
		return fmt.Errorf("calibration attempts must be at least 1, got %d", c.CalibrationAttempts)
	}
	if c.BandMinOccupied < 1 || c.BandMinOccupied > 16 {
		return fmt.Errorf("band min occupied must be between 1 and 16, got %d", c.BandMinOccupied)
	}
	return nil
}

// NormalizedBoard is a rectified top-down board image
type NormalizedBoard struct {
	Image       *image.RGBA
	Size        int
	Orientation board.Orientation
}

// CellSize returns the side of one square in pixels
func (b NormalizedBoard) CellSize() int { return b.Size / 8 }

// SquareRect returns the pixel rectangle of a square
func (b NormalizedBoard) SquareRect(sq board.Square) image.Rectangle {
	row, col := b.Orientation.Cell(sq)
	c := b.CellSize()
	return image.Rect(col*c, row*c, (col+1)*c, (row+1)*c)
}

// Patch returns the sub-image for a square. It shares pixels with the board.
func (b NormalizedBoard) Patch(sq board.Square) image.Image {
	return b.Image.SubImage(b.SquareRect(sq))
}

// Normalizer warps frames and owns the per-session orientation lock.
// Not safe for concurrent use; the pipeline serializes frames.
type Normalizer struct {
	config Config
	logger *zap.Logger

	orientation board.Orientation
	locked      bool
	attempts    int
}

// New creates a normalizer. An explicit orientation in config locks immediately.
func New(config Config, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Normalizer{config: config, logger: logger}
	if config.Orientation != board.UnknownOrientation {
		n.orientation, n.locked = config.Orientation, true
	}
	return n
}

// Orientation returns the locked orientation, if any
func (n *Normalizer) Orientation() (board.Orientation, bool) {
	return n.orientation, n.locked
}

// Normalize rectifies region of img. Until the orientation is locked it
// returns the warped board together with ErrOrientationPending.
func (n *Normalizer) Normalize(img image.Image, region geom.Quad) (NormalizedBoard, error) {
	warped, err := Warp(img, region, n.config.Size)
	if err != nil {
		return NormalizedBoard{}, err
	}

	b := NormalizedBoard{Image: warped, Size: n.config.Size, Orientation: n.orientation}
	if n.locked {
		return b, nil
	}

	n.attempts++
	if o, ok := Calibrate(warped, n.config); ok {
		n.lock(o)
		n.logger.Info("Board orientation calibrated",
			zap.Stringer("rank1", o),
			zap.Int("attempts", n.attempts))
		b.Orientation = o
		return b, nil
	}

	if n.attempts >= n.config.CalibrationAttempts {
		n.lock(board.Rank1Bottom)
		n.logger.Warn("Orientation calibration failed, assuming rank 1 at the bottom",
			zap.Int("attempts", n.attempts))
		b.Orientation = board.Rank1Bottom
		return b, nil
	}

	return b, fmt.Errorf("calibration attempt %d/%d: %w", n.attempts, n.config.CalibrationAttempts, ErrOrientationPending)
}

func (n *Normalizer) lock(o board.Orientation) {
	n.orientation, n.locked = o, true
}

// Warp maps the quad region of img onto a size x size square with bilinear sampling
func Warp(img image.Image, region geom.Quad, size int) (*image.RGBA, error) {
	s := float64(size)
	h, err := geom.ComputeHomography(geom.Rect(0, 0, s, s), region)
	if err != nil {
		return nil, fmt.Errorf("failed to rectify board: %w", err)
	}

	src := toRGBA(img)
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := h.Apply(geom.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			dst.SetRGBA(x, y, bilinear(src, p.X-0.5, p.Y-0.5))
		}
	}
	return dst, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}

func bilinear(img *image.RGBA, x, y float64) color.RGBA {
	b := img.Bounds()
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(x0), y-float64(y0)

	at := func(px, py int) color.RGBA {
		px = clamp(px, b.Min.X, b.Max.X-1)
		py = clamp(py, b.Min.Y, b.Max.Y-1)
		return img.RGBAAt(px, py)
	}
	c00, c10 := at(x0, y0), at(x0+1, y0)
	c01, c11 := at(x0, y0+1), at(x0+1, y0+1)

	mix := func(a, b, c, d uint8) uint8 {
		top := float64(a)*(1-fx) + float64(b)*fx
		bot := float64(c)*(1-fx) + float64(d)*fx
		return uint8(math.Round(top*(1-fy) + bot*fy))
	}
	return color.RGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: mix(c00.A, c10.A, c01.A, c11.A),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
