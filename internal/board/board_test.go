package board

import (
	"strings"
	"testing"
)

func TestPieceEncoding(t *testing.T) {
	tests := []struct {
		piece  Piece
		color  Color
		typ    PieceType
		symbol string
		ch     int
	}{
		{Empty, NoColor, NoPieceType, ".", -1},
		{WhitePawn, White, Pawn, "P", 0},
		{WhiteKing, White, King, "K", 5},
		{BlackPawn, Black, Pawn, "p", 6},
		{BlackQueen, Black, Queen, "q", 10},
		{BlackKing, Black, King, "k", 11},
	}

	for _, tt := range tests {
		t.Run(tt.piece.String(), func(t *testing.T) {
			if got := tt.piece.Color(); got != tt.color {
				t.Errorf("Color() = %v, want %v", got, tt.color)
			}
			if got := tt.piece.Type(); got != tt.typ {
				t.Errorf("Type() = %v, want %v", got, tt.typ)
			}
			if got := tt.piece.Symbol(); got != tt.symbol {
				t.Errorf("Symbol() = %q, want %q", got, tt.symbol)
			}
			if got := tt.piece.Channel(); got != tt.ch {
				t.Errorf("Channel() = %d, want %d", got, tt.ch)
			}
			if tt.piece != Empty && NewPiece(tt.color, tt.typ) != tt.piece {
				t.Errorf("NewPiece(%v, %v) did not round-trip", tt.color, tt.typ)
			}
		})
	}
}

func TestSquare(t *testing.T) {
	tests := []struct {
		name  string
		file  int
		rank  int
		light bool
	}{
		{"a1", 0, 0, false},
		{"h1", 7, 0, true},
		{"e4", 4, 3, true},
		{"d4", 3, 3, false},
		{"h8", 7, 7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sq := NewSquare(tt.file, tt.rank)
			if sq.String() != tt.name {
				t.Errorf("String() = %q, want %q", sq.String(), tt.name)
			}
			parsed, err := ParseSquare(tt.name)
			if err != nil {
				t.Fatalf("ParseSquare failed: %v", err)
			}
			if parsed != sq {
				t.Errorf("ParseSquare(%q) = %d, want %d", tt.name, parsed, sq)
			}
			if sq.IsLight() != tt.light {
				t.Errorf("IsLight() = %v, want %v", sq.IsLight(), tt.light)
			}
		})
	}

	if NewSquare(8, 0) != NoSquare {
		t.Error("out of range file should yield NoSquare")
	}
	if _, err := ParseSquare("i9"); err == nil {
		t.Error("expected error for invalid square")
	}
}

func TestFENRoundTrip(t *testing.T) {
	fens := []string{
		StartingFEN,
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		"r3k2r/8/8/8/8/8/8/R3K2R w Kq - 12 40",
		"8/8/8/4k3/8/8/4K3/8 b - - 99 120",
	}

	for _, fen := range fens {
		t.Run(fen, func(t *testing.T) {
			pos, err := ParseFEN(fen)
			if err != nil {
				t.Fatalf("ParseFEN failed: %v", err)
			}
			if got := pos.FEN(); got != fen {
				t.Errorf("FEN() = %q, want %q", got, fen)
			}
		})
	}
}

func TestParseFENErrors(t *testing.T) {
	bad := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1",
		"rnbqkbnr/pppppppp/9/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KX - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq z9 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - -1 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNX w KQkq - 0 1",
	}
	for _, fen := range bad {
		if _, err := ParseFEN(fen); err == nil {
			t.Errorf("ParseFEN(%q) expected error", fen)
		}
	}
}

func TestParseFENShortForm(t *testing.T) {
	pos, err := ParseFEN("8/8/8/4k3/8/8/4K3/8 w - -")
	if err != nil {
		t.Fatalf("ParseFEN failed: %v", err)
	}
	if pos.HalfmoveClock != 0 || pos.FullmoveNumber != 1 {
		t.Errorf("clocks = %d %d, want 0 1", pos.HalfmoveClock, pos.FullmoveNumber)
	}
}

func TestStartingPosition(t *testing.T) {
	pos := StartingPosition()

	if pos.Turn != White {
		t.Errorf("Turn = %v, want white", pos.Turn)
	}
	if pos.Castling != AllCastling {
		t.Errorf("Castling = %v, want KQkq", pos.Castling)
	}
	if pos.EnPassant != NoSquare {
		t.Errorf("EnPassant = %v, want none", pos.EnPassant)
	}
	if got := pos.Placement.CountColor(White); got != 16 {
		t.Errorf("white pieces = %d, want 16", got)
	}
	if got := pos.Placement.Count(BlackPawn); got != 8 {
		t.Errorf("black pawns = %d, want 8", got)
	}
	if got := pos.Placement.KingSquare(Black); got.String() != "e8" {
		t.Errorf("black king on %v, want e8", got)
	}
	if got := InferCastling(pos.Placement); got != AllCastling {
		t.Errorf("InferCastling = %v, want KQkq", got)
	}
}

func TestPlacementDiff(t *testing.T) {
	start := StartingPosition()
	after, err := ParseFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1")
	if err != nil {
		t.Fatal(err)
	}

	diff := start.Placement.Diff(after.Placement)
	if len(diff) != 2 {
		t.Fatalf("Diff returned %d squares, want 2", len(diff))
	}
	if diff[0].String() != "e2" || diff[1].String() != "e4" {
		t.Errorf("Diff = %v, want [e2 e4]", diff)
	}
	if start.SamePlacement(after) {
		t.Error("SamePlacement should be false")
	}
	if start.RepetitionKey() == after.RepetitionKey() {
		t.Error("repetition keys should differ")
	}
}

func TestCastlingString(t *testing.T) {
	tests := []struct {
		cr   CastlingRights
		want string
	}{
		{NoCastling, "-"},
		{AllCastling, "KQkq"},
		{WhiteKingside | BlackQueenside, "Kq"},
	}
	for _, tt := range tests {
		if got := tt.cr.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		parsed, err := ParseCastling(tt.want)
		if err != nil || parsed != tt.cr {
			t.Errorf("ParseCastling(%q) = %v, %v", tt.want, parsed, err)
		}
	}
}

func TestMoveUCI(t *testing.T) {
	m := Move{From: NewSquare(4, 6), To: NewSquare(4, 7), Promotion: Queen}
	if got := m.UCI(); got != "e7e8q" {
		t.Errorf("UCI() = %q, want e7e8q", got)
	}
	if m.String() != "e7e8q" {
		t.Errorf("String() without SAN should fall back to UCI")
	}
	m.SAN = "e8=Q"
	if m.String() != "e8=Q" {
		t.Errorf("String() = %q, want e8=Q", m.String())
	}
}

func TestOutcome(t *testing.T) {
	if Ongoing.Terminal() {
		t.Error("Ongoing should not be terminal")
	}
	o := Outcome{Result: ResultWhiteWins, Termination: Checkmate}
	if !o.Terminal() {
		t.Error("checkmate should be terminal")
	}
	if o.String() != "1-0 (checkmate)" {
		t.Errorf("String() = %q", o.String())
	}
}

func TestDiagram(t *testing.T) {
	d := StartingPosition().Placement.Diagram()
	if !strings.Contains(d, "♔") || !strings.Contains(d, "♚") {
		t.Error("diagram should contain both kings")
	}
	if strings.Count(d, "\n") != 11 {
		t.Errorf("diagram has %d lines, want 11", strings.Count(d, "\n"))
	}
}

func TestOrientationRoundTrip(t *testing.T) {
	for _, o := range Orientations {
		t.Run(o.String(), func(t *testing.T) {
			seen := make(map[Square]bool)
			for row := 0; row < 8; row++ {
				for col := 0; col < 8; col++ {
					sq := o.SquareAt(row, col)
					if !sq.Valid() || seen[sq] {
						t.Fatalf("cell (%d,%d) maps to %v", row, col, sq)
					}
					seen[sq] = true
					if r, c := o.Cell(sq); r != row || c != col {
						t.Fatalf("Cell(%v) = (%d,%d), want (%d,%d)", sq, r, c, row, col)
					}
				}
			}
		})
	}
}

func TestOrientationCorners(t *testing.T) {
	tests := []struct {
		o        Orientation
		row, col int
		want     string
	}{
		{Rank1Bottom, 7, 0, "a1"},
		{Rank1Bottom, 0, 7, "h8"},
		{Rank1Top, 0, 7, "a1"},
		{Rank1Left, 0, 0, "a1"},
		{Rank1Left, 7, 0, "h1"},
		{Rank1Right, 7, 7, "a1"},
	}
	for _, tt := range tests {
		if got := tt.o.SquareAt(tt.row, tt.col).String(); got != tt.want {
			t.Errorf("%v.SquareAt(%d,%d) = %s, want %s", tt.o, tt.row, tt.col, got, tt.want)
		}
	}

	if o, err := ParseOrientation("Left"); err != nil || o != Rank1Left {
		t.Errorf("ParseOrientation(Left) = %v, %v", o, err)
	}
	if o, err := ParseOrientation(""); err != nil || o != UnknownOrientation {
		t.Errorf("ParseOrientation(\"\") = %v, %v", o, err)
	}
	if _, err := ParseOrientation("diagonal"); err == nil {
		t.Error("expected error for invalid orientation")
	}
}
