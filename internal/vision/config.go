// Package vision holds the OpenCV-backed pieces of the pipeline: the contour
// board detector and the video file and screen frame sources.
package vision

import (
	"fmt"
	"image"
)

// Config holds contour detection settings
type Config struct {
	// BlurSize is the Gaussian kernel side (odd)
	BlurSize int

	// ThresholdBlock and ThresholdC tune the adaptive threshold
	ThresholdBlock int
	ThresholdC     float32

	CannyLow  float32
	CannyHigh float32

	// DilateSize closes gaps in grid lines (0 disables dilation)
	DilateSize int

	// ApproxEpsilon is the polygon approximation tolerance as a fraction of the contour perimeter
	ApproxEpsilon float64

	// MinAreaFraction drops contours smaller than this fraction of the frame area
	MinAreaFraction float64

	// MaxCandidates caps the quads returned per frame, largest first
	MaxCandidates int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		BlurSize:        5,
		ThresholdBlock:  11,
		ThresholdC:      2,
		CannyLow:        50,
		CannyHigh:       150,
		DilateSize:      3,
		ApproxEpsilon:   0.02,
		MinAreaFraction: 0.02,
		MaxCandidates:   5,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.BlurSize < 1 || c.BlurSize%2 == 0 {
		return fmt.Errorf("invalid blur size: %d (must be odd and positive)", c.BlurSize)
	}
	if c.ThresholdBlock < 3 || c.ThresholdBlock%2 == 0 {
		return fmt.Errorf("invalid threshold block: %d (must be odd and at least 3)", c.ThresholdBlock)
	}
	if c.CannyLow < 0 || c.CannyHigh <= c.CannyLow {
		return fmt.Errorf("invalid canny thresholds: %.0f..%.0f", c.CannyLow, c.CannyHigh)
	}
	if c.DilateSize < 0 {
		return fmt.Errorf("invalid dilate size: %d", c.DilateSize)
	}
	if c.ApproxEpsilon <= 0 || c.ApproxEpsilon >= 0.5 {
		return fmt.Errorf("invalid approximation epsilon: %f (must be 0-0.5)", c.ApproxEpsilon)
	}
	if c.MinAreaFraction < 0 || c.MinAreaFraction >= 1 {
		return fmt.Errorf("invalid min area fraction: %f", c.MinAreaFraction)
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("invalid max candidates: %d", c.MaxCandidates)
	}
	return nil
}

// CaptureRegion defines the screen area to capture
type CaptureRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ToRectangle converts CaptureRegion to image.Rectangle
func (cr CaptureRegion) ToRectangle() image.Rectangle {
	return image.Rect(cr.X, cr.Y, cr.X+cr.Width, cr.Y+cr.Height)
}

// Empty reports whether the region selects nothing, meaning the whole display
func (cr CaptureRegion) Empty() bool {
	return cr.Width <= 0 || cr.Height <= 0
}
