package extractor

import (
	"context"
	"image"
	"math"

	"github.com/thyrook/boardscribe/internal/board"
)

// OccupancyClassifier separates empty from occupied squares by intensity
// variation and guesses color from brightness. It cannot tell piece types
// apart: occupied squares come back ColorOnly, with a pawn of the detected
// color as placeholder, and the validator recovers the types by matching
// the occupancy pattern against the legal successors of the previous
// position.
type OccupancyClassifier struct {
	// StdDevThreshold is the luma deviation (0-255 scale) above which a square is occupied.
	StdDevThreshold float64

	// WhiteAbove is the mean luma (0-255) above which a piece is white.
	WhiteAbove float64
}

// NewOccupancyClassifier returns a classifier with default thresholds
func NewOccupancyClassifier() *OccupancyClassifier {
	return &OccupancyClassifier{StdDevThreshold: 28, WhiteAbove: 128}
}

// Classify implements Classifier
func (o *OccupancyClassifier) Classify(ctx context.Context, patch image.Image) (Classification, error) {
	centre := CropCenter(patch, 0.5)
	b := centre.Bounds()

	var sum, sq float64
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := luma(centre, x, y) * 255
			sum += v
			sq += v * v
			n++
		}
	}
	if n == 0 {
		return Classification{Piece: board.Empty}, nil
	}
	mean := sum / float64(n)
	std := math.Sqrt(math.Max(0, sq/float64(n)-mean*mean))

	if std <= o.StdDevThreshold {
		return Classification{Piece: board.Empty, Confidence: 1 - std/o.StdDevThreshold/2}, nil
	}

	color := board.Black
	if mean > o.WhiteAbove {
		color = board.White
	}
	return Classification{
		Piece:      board.NewPiece(color, board.Pawn),
		Confidence: math.Min(1, 0.5+(std-o.StdDevThreshold)/(2*o.StdDevThreshold)),
		ColorOnly:  true,
	}, nil
}
