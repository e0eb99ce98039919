package rules

import "github.com/thyrook/boardscribe/internal/board"

// InsufficientMaterial reports dead positions that no sequence of legal
// moves can turn into checkmate: K v K, K+minor v K, and K+B v K+B with
// all bishops on the same square shade.
func InsufficientMaterial(pl board.Placement) bool {
	var minors []board.Square
	for i, p := range pl {
		switch p.Type() {
		case board.NoPieceType, board.King:
		case board.Knight, board.Bishop:
			minors = append(minors, board.Square(i))
		default:
			return false
		}
	}

	switch len(minors) {
	case 0, 1:
		return true
	}

	// Only bishops left: dead when all share one shade
	light := minors[0].IsLight()
	for _, sq := range minors {
		if pl[sq].Type() != board.Bishop || sq.IsLight() != light {
			return false
		}
	}
	return true
}

var (
	knightSteps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookDirs    = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDirs  = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// Attacked reports whether any piece of color by attacks sq
func Attacked(pl board.Placement, sq board.Square, by board.Color) bool {
	f, r := sq.File(), sq.Rank()

	pawnRank := r - 1
	if by == board.Black {
		pawnRank = r + 1
	}
	for _, df := range []int{-1, 1} {
		if pl.At(board.NewSquare(f+df, pawnRank)) == board.NewPiece(by, board.Pawn) {
			return true
		}
	}

	for _, s := range knightSteps {
		if pl.At(board.NewSquare(f+s[0], r+s[1])) == board.NewPiece(by, board.Knight) {
			return true
		}
	}
	for _, s := range kingSteps {
		if pl.At(board.NewSquare(f+s[0], r+s[1])) == board.NewPiece(by, board.King) {
			return true
		}
	}

	if slides(pl, f, r, rookDirs[:], by, board.Rook) || slides(pl, f, r, bishopDirs[:], by, board.Bishop) {
		return true
	}
	return false
}

func slides(pl board.Placement, f, r int, dirs [][2]int, by board.Color, line board.PieceType) bool {
	for _, d := range dirs {
		for step := 1; step < 8; step++ {
			sq := board.NewSquare(f+d[0]*step, r+d[1]*step)
			if sq == board.NoSquare {
				break
			}
			p := pl[sq]
			if p == board.Empty {
				continue
			}
			if p.Color() == by && (p.Type() == line || p.Type() == board.Queen) {
				return true
			}
			break
		}
	}
	return false
}

// InCheck reports whether the king of color c is attacked. A missing king is never in check.
func InCheck(pl board.Placement, c board.Color) bool {
	k := pl.KingSquare(c)
	if k == board.NoSquare {
		return false
	}
	return Attacked(pl, k, c.Other())
}
