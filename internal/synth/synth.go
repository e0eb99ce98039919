// Package synth renders synthetic top-down and perspective board images.
// It backs the simulate command and the pipeline tests.
package synth

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/geom"
)

// Palette holds the gray levels used for rendering
type Palette struct {
	LightSquare uint8
	DarkSquare  uint8
	WhiteBody   uint8
	WhiteTrim   uint8
	BlackBody   uint8
	BlackTrim   uint8
	Background  uint8
}

// DefaultPalette returns a high-contrast tournament-like palette
func DefaultPalette() Palette {
	return Palette{
		LightSquare: 225,
		DarkSquare:  120,
		WhiteBody:   250,
		WhiteTrim:   70,
		BlackBody:   15,
		BlackTrim:   180,
		Background:  40,
	}
}

// glyphs are 5x5 silhouettes, one per piece type
var glyphs = map[board.PieceType][5]string{
	board.Pawn:   {"..#..", ".###.", "..#..", ".###.", "#####"},
	board.Knight: {".##..", "####.", "..##.", ".###.", "#####"},
	board.Bishop: {"..#..", ".#.#.", ".###.", "..#..", "#####"},
	board.Rook:   {"#.#.#", "#####", ".###.", ".###.", "#####"},
	board.Queen:  {"#.#.#", ".###.", "..#..", ".###.", "#####"},
	board.King:   {"..#..", "#####", "..#..", ".###.", "#####"},
}

// Renderer draws positions with a fixed palette
type Renderer struct {
	Palette Palette
}

// NewRenderer creates a renderer with the default palette
func NewRenderer() *Renderer {
	return &Renderer{Palette: DefaultPalette()}
}

// Board renders a top-down board of size x size pixels with rank 1 on the given edge
func (r *Renderer) Board(pl board.Placement, size int, o board.Orientation) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := size / 8

	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			sq := o.SquareAt(row, col)
			rect := image.Rect(col*cell, row*cell, (col+1)*cell, (row+1)*cell)
			r.cell(img, rect, sq, pl[sq])
		}
	}
	return img
}

// Cell renders one square patch of side size
func (r *Renderer) Cell(p board.Piece, light bool, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	sq := board.NewSquare(0, 0)
	if light {
		sq = board.NewSquare(1, 0)
	}
	r.cell(img, img.Bounds(), sq, p)
	return img
}

func (r *Renderer) cell(img *image.RGBA, rect image.Rectangle, sq board.Square, p board.Piece) {
	shade := r.Palette.DarkSquare
	if sq.IsLight() {
		shade = r.Palette.LightSquare
	}
	draw.Draw(img, rect, image.NewUniform(color.Gray{Y: shade}), image.Point{}, draw.Src)

	if p == board.Empty {
		return
	}

	body, trim := r.Palette.WhiteBody, r.Palette.WhiteTrim
	if p.Color() == board.Black {
		body, trim = r.Palette.BlackBody, r.Palette.BlackTrim
	}

	// Piece box covers the central 60% of the cell
	side := rect.Dx() * 3 / 5
	x0 := rect.Min.X + (rect.Dx()-side)/2
	y0 := rect.Min.Y + (rect.Dy()-side)/2
	g := glyphs[p.Type()]
	for y := 0; y < side; y++ {
		gy := y * 5 / side
		for x := 0; x < side; x++ {
			gx := x * 5 / side
			v := trim
			if g[gy][gx] == '#' {
				v = body
			}
			img.Set(x0+x, y0+y, color.Gray{Y: v})
		}
	}
}

// Frame renders the board into a width x height frame so that the corners
// of the top-down rendering land on region.
func (r *Renderer) Frame(pl board.Placement, o board.Orientation, width, height int, region geom.Quad) (*image.RGBA, error) {
	const boardSize = 512
	top := r.Board(pl, boardSize, o)

	inv, err := geom.ComputeHomography(region, geom.Rect(0, 0, boardSize, boardSize))
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: r.Palette.Background}), image.Point{}, draw.Src)

	lo, hi := region.Bounds()
	for y := int(math.Floor(lo.Y)); y <= int(math.Ceil(hi.Y)); y++ {
		if y < 0 || y >= height {
			continue
		}
		for x := int(math.Floor(lo.X)); x <= int(math.Ceil(hi.X)); x++ {
			if x < 0 || x >= width {
				continue
			}
			p := inv.Apply(geom.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			bx, by := int(math.Floor(p.X)), int(math.Floor(p.Y))
			if bx < 0 || by < 0 || bx >= boardSize || by >= boardSize {
				continue
			}
			img.SetRGBA(x, y, top.RGBAAt(bx, by))
		}
	}
	return img, nil
}
