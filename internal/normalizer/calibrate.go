package normalizer

import (
	"image"
	"math"

	"github.com/thyrook/boardscribe/internal/board"
)

// CellStats summarizes the central half of one image cell
type CellStats struct {
	Mean   float64
	StdDev float64
}

// GridStats measures every cell of a top-down board image (row 0 at the top)
func GridStats(img *image.RGBA) [8][8]CellStats {
	var out [8][8]CellStats
	b := img.Bounds()
	cw, ch := b.Dx()/8, b.Dy()/8

	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			r := image.Rect(
				b.Min.X+col*cw+cw/4, b.Min.Y+row*ch+ch/4,
				b.Min.X+col*cw+3*cw/4, b.Min.Y+row*ch+3*ch/4,
			)
			out[row][col] = Stats(img, r)
		}
	}
	return out
}

// Stats returns the luminance mean and standard deviation over r
func Stats(img *image.RGBA, r image.Rectangle) CellStats {
	var sum, sq float64
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			v := Luma(img, x, y)
			sum += v
			sq += v * v
			n++
		}
	}
	if n == 0 {
		return CellStats{}
	}
	mean := sum / float64(n)
	variance := sq/float64(n) - mean*mean
	return CellStats{Mean: mean, StdDev: math.Sqrt(math.Max(0, variance))}
}

// Luma returns the 8-bit luminance of a pixel
func Luma(img *image.RGBA, x, y int) float64 {
	c := img.RGBAAt(x, y)
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

// Calibrate infers the orientation from a starting-position-like layout:
// two opposite fully populated two-line bands around an empty middle.
// The band with the lighter pieces is White's, so rank 1 lies on its edge.
func Calibrate(img *image.RGBA, cfg Config) (board.Orientation, bool) {
	stats := GridStats(img)

	var occupied [8][8]bool
	for row := range stats {
		for col := range stats[row] {
			occupied[row][col] = stats[row][col].StdDev > cfg.OccupancyThreshold
		}
	}

	// rows: bands are rows 0-1 (top) and 6-7 (bottom)
	if o, ok := matchBands(stats, occupied, cfg, false); ok {
		return o, true
	}
	// columns: bands are columns 0-1 (left) and 6-7 (right)
	return matchBands(stats, occupied, cfg, true)
}

func matchBands(stats [8][8]CellStats, occupied [8][8]bool, cfg Config, transpose bool) (board.Orientation, bool) {
	at := func(line, i int) (CellStats, bool) {
		if transpose {
			return stats[i][line], occupied[i][line]
		}
		return stats[line][i], occupied[line][i]
	}

	count := func(lines ...int) (n int, mean float64) {
		var sum float64
		for _, line := range lines {
			for i := 0; i < 8; i++ {
				s, occ := at(line, i)
				if occ {
					n++
					sum += s.Mean
				}
			}
		}
		if n > 0 {
			mean = sum / float64(n)
		}
		return n, mean
	}

	nearN, nearMean := count(0, 1)
	farN, farMean := count(6, 7)
	midN, _ := count(2, 3, 4, 5)

	if nearN < cfg.BandMinOccupied || farN < cfg.BandMinOccupied || midN > cfg.MiddleMaxOccupied {
		return board.UnknownOrientation, false
	}

	switch {
	case transpose && nearMean > farMean:
		return board.Rank1Left, true
	case transpose:
		return board.Rank1Right, true
	case nearMean > farMean:
		return board.Rank1Top, true
	default:
		return board.Rank1Bottom, true
	}
}
