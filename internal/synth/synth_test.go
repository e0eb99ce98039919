package synth

import (
	"image/color"
	"testing"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/geom"
)

func gray(c color.Color) uint8 {
	return color.GrayModel.Convert(c).(color.Gray).Y
}

func TestBoardSquaresAndPieces(t *testing.T) {
	r := NewRenderer()
	var pl board.Placement
	pl[board.NewSquare(4, 0)] = board.WhiteKing

	img := r.Board(pl, 512, board.Rank1Bottom)

	// a8 (top-left) is light and empty
	if got := gray(img.At(5, 5)); got != r.Palette.LightSquare {
		t.Errorf("a8 shade = %d, want %d", got, r.Palette.LightSquare)
	}
	// a1 (bottom-left) is dark
	if got := gray(img.At(5, 512-5)); got != r.Palette.DarkSquare {
		t.Errorf("a1 shade = %d, want %d", got, r.Palette.DarkSquare)
	}

	// e1 holds the king: its bottom glyph row is solid body colour
	row, col := board.Rank1Bottom.Cell(board.NewSquare(4, 0))
	cx := col*64 + 32
	cy := row*64 + 64*4/5 - 2
	if got := gray(img.At(cx, cy)); got != r.Palette.WhiteBody {
		t.Errorf("king base = %d, want %d", got, r.Palette.WhiteBody)
	}
}

func TestCellsDifferByPiece(t *testing.T) {
	r := NewRenderer()
	seen := make(map[string]board.Piece)
	for p := board.WhitePawn; p <= board.BlackKing; p++ {
		img := r.Cell(p, true, 40)
		key := string(img.Pix)
		if prev, ok := seen[key]; ok {
			t.Fatalf("%v renders identically to %v", p, prev)
		}
		seen[key] = p
	}
}

func TestFrame(t *testing.T) {
	r := NewRenderer()
	region := geom.Quad{{X: 100, Y: 60}, {X: 420, Y: 70}, {X: 440, Y: 400}, {X: 90, Y: 390}}
	img, err := r.Frame(board.StartingPosition().Placement, board.Rank1Bottom, 640, 480, region)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if got := gray(img.At(5, 5)); got != r.Palette.Background {
		t.Errorf("outside pixel = %d, want background", got)
	}
	if got := gray(img.At(260, 230)); got == r.Palette.Background {
		t.Error("centre pixel should be on the board")
	}
}
