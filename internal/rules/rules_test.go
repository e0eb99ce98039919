package rules

import (
	"errors"
	"testing"

	"github.com/thyrook/boardscribe/internal/board"
)

func mustFEN(t *testing.T, fen string) board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return pos
}

func sq(t *testing.T, s string) board.Square {
	t.Helper()
	v, err := board.ParseSquare(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestSuccessorsFromStart(t *testing.T) {
	e := NewEngine()
	succ, err := e.Successors(board.StartingPosition())
	if err != nil {
		t.Fatalf("Successors failed: %v", err)
	}
	if len(succ) != 20 {
		t.Fatalf("got %d successors, want 20", len(succ))
	}

	for i := 1; i < len(succ); i++ {
		if !moveLess(succ[i-1].Move, succ[i].Move) {
			t.Fatalf("successors not sorted at %d: %s then %s", i, succ[i-1].Move.UCI(), succ[i].Move.UCI())
		}
	}

	var found bool
	for _, s := range succ {
		if s.Move.UCI() != "g1f3" {
			continue
		}
		found = true
		if s.Move.SAN != "Nf3" {
			t.Errorf("SAN = %q, want Nf3", s.Move.SAN)
		}
		if s.Move.Piece != board.WhiteKnight {
			t.Errorf("Piece = %v, want white knight", s.Move.Piece)
		}
		if s.Position.Turn != board.Black {
			t.Errorf("Turn after move = %v, want black", s.Position.Turn)
		}
		if s.Position.HalfmoveClock != 1 {
			t.Errorf("HalfmoveClock = %d, want 1", s.Position.HalfmoveClock)
		}
	}
	if !found {
		t.Error("g1f3 not among successors")
	}
}

func TestApply(t *testing.T) {
	e := NewEngine()
	start := board.StartingPosition()

	next, err := e.Apply(start, board.Move{From: sq(t, "e2"), To: sq(t, "e4")})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if next.Placement.At(sq(t, "e4")) != board.WhitePawn {
		t.Error("pawn should be on e4")
	}
	if next.Turn != board.Black || next.FullmoveNumber != 1 {
		t.Errorf("Turn/fullmove = %v/%d, want b/1", next.Turn, next.FullmoveNumber)
	}

	_, err = e.Apply(start, board.Move{From: sq(t, "e2"), To: sq(t, "e5")})
	if !errors.Is(err, ErrIllegalMove) {
		t.Errorf("expected ErrIllegalMove, got %v", err)
	}
}

func TestSpecialMoves(t *testing.T) {
	tests := []struct {
		name    string
		fen     string
		uci     string
		san     string
		special board.Special
		capture bool
	}{
		{
			name:    "kingside castle",
			fen:     "r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R w KQkq - 0 1",
			uci:     "e1g1",
			san:     "O-O",
			special: board.CastleKingside,
		},
		{
			name:    "queenside castle",
			fen:     "r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R b KQkq - 0 1",
			uci:     "e8c8",
			san:     "O-O-O",
			special: board.CastleQueenside,
		},
		{
			name:    "en passant",
			fen:     "4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 2",
			uci:     "e5d6",
			san:     "exd6",
			special: board.EnPassant,
			capture: true,
		},
		{
			name:    "promotion",
			fen:     "8/4P3/8/8/8/8/k7/7K w - - 0 1",
			uci:     "e7e8q",
			san:     "e8=Q",
			special: board.Promotion,
		},
	}

	e := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			succ, err := e.Successors(mustFEN(t, tt.fen))
			if err != nil {
				t.Fatal(err)
			}
			for _, s := range succ {
				if s.Move.UCI() != tt.uci {
					continue
				}
				if s.Move.SAN != tt.san {
					t.Errorf("SAN = %q, want %q", s.Move.SAN, tt.san)
				}
				if s.Move.Special != tt.special {
					t.Errorf("Special = %v, want %v", s.Move.Special, tt.special)
				}
				if s.Move.Capture != tt.capture {
					t.Errorf("Capture = %v, want %v", s.Move.Capture, tt.capture)
				}
				return
			}
			t.Errorf("%s not found among %d successors", tt.uci, len(succ))
		})
	}
}

func TestEnPassantRemovesPawn(t *testing.T) {
	e := NewEngine()
	pos := mustFEN(t, "4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 2")
	next, err := e.Apply(pos, board.Move{From: sq(t, "e5"), To: sq(t, "d6")})
	if err != nil {
		t.Fatal(err)
	}
	if next.Placement.At(sq(t, "d5")) != board.Empty {
		t.Error("captured pawn on d5 should be removed")
	}
	if next.Placement.At(sq(t, "d6")) != board.WhitePawn {
		t.Error("capturing pawn should be on d6")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want board.Outcome
	}{
		{"start", board.StartingFEN, board.Ongoing},
		{
			"fools mate",
			"rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
			board.Outcome{Result: board.ResultBlackWins, Termination: board.Checkmate},
		},
		{
			"stalemate",
			"7k/5Q2/6K1/8/8/8/8/8 b - - 0 1",
			board.Outcome{Result: board.ResultDraw, Termination: board.Stalemate},
		},
		{
			"bare kings",
			"8/8/8/4k3/8/8/4K3/8 w - - 0 1",
			board.Outcome{Result: board.ResultDraw, Termination: board.InsufficientMaterial},
		},
		{
			"seventy-five moves",
			"8/8/8/4k3/8/8/4K3/7R w - - 150 120",
			board.Outcome{Result: board.ResultDraw, Termination: board.SeventyFiveMoveRule},
		},
	}

	e := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Outcome(mustFEN(t, tt.fen))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Outcome = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInsufficientMaterial(t *testing.T) {
	tests := []struct {
		fen  string
		want bool
	}{
		{"8/8/8/4k3/8/8/4K3/8 w - - 0 1", true},
		{"8/8/8/4k3/8/8/4K3/6N1 w - - 0 1", true},
		{"8/8/8/4k3/8/8/4K3/5B2 w - - 0 1", true},
		{"5b2/8/8/4k3/8/8/4K3/2B5 w - - 0 1", true},
		{"2b5/8/8/4k3/8/8/4K3/2B5 w - - 0 1", false},
		{"8/8/8/4k3/8/8/4K3/5NN1 w - - 0 1", false},
		{"8/8/8/4k3/8/8/4KP2/8 w - - 0 1", false},
		{board.StartingFEN, false},
	}

	for _, tt := range tests {
		pos := mustFEN(t, tt.fen)
		if got := InsufficientMaterial(pos.Placement); got != tt.want {
			t.Errorf("InsufficientMaterial(%s) = %v, want %v", tt.fen, got, tt.want)
		}
	}
}

func TestInCheck(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		color board.Color
		want  bool
	}{
		{"start", board.StartingFEN, board.White, false},
		{"queen diagonal", "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", board.White, true},
		{"rook blocked", "4k3/8/8/8/4p3/8/8/4R1K1 w - - 0 1", board.Black, false},
		{"rook open file", "4k3/8/8/8/8/8/8/4R1K1 w - - 0 1", board.Black, true},
		{"knight", "4k3/8/3N4/8/8/8/8/6K1 b - - 0 1", board.Black, true},
		{"white pawn", "8/8/8/8/8/3k4/4P3/6K1 b - - 0 1", board.Black, true},
		{"black pawn", "8/8/8/3p4/4K3/8/8/6k1 w - - 0 1", board.White, true},
		{"pawn behind", "8/8/8/8/4K3/3p4/8/6k1 w - - 0 1", board.White, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := mustFEN(t, tt.fen)
			if got := InCheck(pos.Placement, tt.color); got != tt.want {
				t.Errorf("InCheck = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchPlacement(t *testing.T) {
	e := NewEngine()
	start := board.StartingPosition()
	target, err := e.Apply(start, board.Move{From: sq(t, "d2"), To: sq(t, "d4")})
	if err != nil {
		t.Fatal(err)
	}

	succ, err := e.Successors(start)
	if err != nil {
		t.Fatal(err)
	}
	matches := MatchPlacement(succ, target.Placement)
	if len(matches) != 1 || matches[0].Move.UCI() != "d2d4" {
		t.Fatalf("MatchPlacement = %v, want [d2d4]", matches)
	}

	moves, err := LegalMoves(e, start)
	if err != nil || len(moves) != 20 {
		t.Errorf("LegalMoves = %d, %v", len(moves), err)
	}
}

func colorsOnly(pl board.Placement) board.Placement {
	var out board.Placement
	for i, p := range pl {
		if p != board.Empty {
			out[i] = board.NewPiece(p.Color(), board.Pawn)
		}
	}
	return out
}

func TestMatchOccupancy(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name string
		fen  string
		move board.Move
		want int
	}{
		{"quiet move", board.StartingFEN, board.Move{From: sq(t, "g1"), To: sq(t, "f3")}, 1},
		{"promotion", "8/4P3/8/8/8/8/k7/4K3 w - - 0 1", board.Move{From: sq(t, "e7"), To: sq(t, "e8"), Promotion: board.Queen}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := mustFEN(t, tt.fen)
			target, err := e.Apply(pos, tt.move)
			if err != nil {
				t.Fatal(err)
			}
			succ, err := e.Successors(pos)
			if err != nil {
				t.Fatal(err)
			}
			matches := MatchOccupancy(succ, colorsOnly(target.Placement))
			if len(matches) != tt.want {
				t.Fatalf("MatchOccupancy = %d matches, want %d", len(matches), tt.want)
			}
			for _, m := range matches {
				if m.Move.From != tt.move.From || m.Move.To != tt.move.To {
					t.Errorf("unexpected match %s", m.Move.UCI())
				}
			}
		})
	}

	if SameOccupancy(board.StartingPosition().Placement, board.Placement{}) {
		t.Error("start and empty boards cannot share occupancy")
	}
}
