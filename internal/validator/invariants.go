package validator

import (
	"fmt"
	"strings"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/rules"
)

// maxPerType bounds each piece type per side; promotions allow up to
// eight extra minor or major pieces.
var maxPerType = map[board.PieceType]int{
	board.Pawn:   8,
	board.Knight: 10,
	board.Bishop: 10,
	board.Rook:   10,
	board.Queen:  9,
	board.King:   1,
}

// initialCount is the number of each type a side starts with
var initialCount = map[board.PieceType]int{
	board.Knight: 2,
	board.Bishop: 2,
	board.Rook:   2,
	board.Queen:  1,
}

// pieceValues are the conventional material weights
var pieceValues = map[board.PieceType]int{
	board.Pawn:   1,
	board.Knight: 3,
	board.Bishop: 3,
	board.Rook:   5,
	board.Queen:  9,
}

// MaxMaterialDiff is the material gap above which a placement is flagged
const MaxMaterialDiff = 15

// Violations lists every hard invariant pl breaks. An empty result means
// the placement could occur in a legal game.
func Violations(pl board.Placement) []string {
	var out []string

	for _, c := range []board.Color{board.White, board.Black} {
		if n := pl.Count(board.NewPiece(c, board.King)); n != 1 {
			out = append(out, fmt.Sprintf("invalid %s king count: %d", c.Name(), n))
		}

		for pt := board.Pawn; pt < board.King; pt++ {
			if n := pl.Count(board.NewPiece(c, pt)); n > maxPerType[pt] {
				out = append(out, fmt.Sprintf("too many %s %ss: %d", c.Name(), pt, n))
			}
		}
		if n := pl.CountColor(c); n > 16 {
			out = append(out, fmt.Sprintf("too many %s pieces: %d", c.Name(), n))
		}

		surplus := 0
		for pt, initial := range initialCount {
			if n := pl.Count(board.NewPiece(c, pt)); n > initial {
				surplus += n - initial
			}
		}
		missing := 8 - pl.Count(board.NewPiece(c, board.Pawn))
		if surplus > missing {
			out = append(out, fmt.Sprintf("%s has %d promoted pieces but only %d missing pawns", c.Name(), surplus, missing))
		}
	}

	for file := 0; file < 8; file++ {
		for _, rank := range []int{0, 7} {
			sq := board.NewSquare(file, rank)
			if pl[sq].Type() == board.Pawn {
				out = append(out, fmt.Sprintf("pawn on back rank at %s", sq))
			}
		}
	}

	if pl.Count(board.NewPiece(board.White, board.King)) == 1 && pl.Count(board.NewPiece(board.Black, board.King)) == 1 &&
		rules.InCheck(pl, board.White) && rules.InCheck(pl, board.Black) {
		out = append(out, "both kings are in check")
	}

	return out
}

// Check returns ErrIllegalPosition describing the violations of pl, or nil
func Check(pl board.Placement) error {
	if v := Violations(pl); len(v) > 0 {
		return fmt.Errorf("%w: %s", ErrIllegalPosition, strings.Join(v, "; "))
	}
	return nil
}

// CheckTurn rejects positions where the side not to move is in check
func CheckTurn(pos board.Position) error {
	if rules.InCheck(pos.Placement, pos.Turn.Other()) {
		return fmt.Errorf("%w: %s is in check but not to move", ErrIllegalPosition, pos.Turn.Other().Name())
	}
	return nil
}

// Material returns the summed piece values of c
func Material(pl board.Placement, c board.Color) int {
	total := 0
	for _, p := range pl {
		if p.Color() == c {
			total += pieceValues[p.Type()]
		}
	}
	return total
}

// Issues lists soft warnings that do not reject a placement
func Issues(pl board.Placement) []string {
	var out []string
	w, b := Material(pl, board.White), Material(pl, board.Black)
	if diff := w - b; diff > MaxMaterialDiff || -diff > MaxMaterialDiff {
		out = append(out, fmt.Sprintf("material imbalance: white %d, black %d", w, b))
	}
	return out
}
