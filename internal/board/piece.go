package board

import (
	"fmt"
)

// Color is the side a piece belongs to
type Color int8

const (
	NoColor Color = iota
	White
	Black
)

// Other returns the opposing color
func (c Color) Other() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

// String returns "w", "b" or "-" as used in FEN
func (c Color) String() string {
	switch c {
	case White:
		return "w"
	case Black:
		return "b"
	default:
		return "-"
	}
}

// Name returns the lowercase color name
func (c Color) Name() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// PieceType is a piece kind without color
type PieceType int8

const (
	NoPieceType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// PieceTypes lists every real piece type in channel order
var PieceTypes = []PieceType{Pawn, Knight, Bishop, Rook, Queen, King}

// Letter returns the uppercase SAN letter ("" for pawns)
func (t PieceType) Letter() string {
	switch t {
	case Knight:
		return "N"
	case Bishop:
		return "B"
	case Rook:
		return "R"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		return ""
	}
}

// String returns the lowercase type name
func (t PieceType) String() string {
	switch t {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// Piece is the content of one square. The numbering doubles as the
// classifier label space: 0 is empty, 1-6 white, 7-12 black.
type Piece uint8

const (
	Empty Piece = iota
	WhitePawn
	WhiteKnight
	WhiteBishop
	WhiteRook
	WhiteQueen
	WhiteKing
	BlackPawn
	BlackKnight
	BlackBishop
	BlackRook
	BlackQueen
	BlackKing
)

// NumPieceClasses is the number of distinct square states (empty + 12 pieces)
const NumPieceClasses = 13

// NewPiece combines a color and a type. Invalid input yields Empty.
func NewPiece(c Color, t PieceType) Piece {
	if t < Pawn || t > King {
		return Empty
	}
	switch c {
	case White:
		return Piece(t)
	case Black:
		return Piece(int(t) + 6)
	default:
		return Empty
	}
}

// Color returns the piece color (NoColor for Empty)
func (p Piece) Color() Color {
	switch {
	case p >= WhitePawn && p <= WhiteKing:
		return White
	case p >= BlackPawn && p <= BlackKing:
		return Black
	default:
		return NoColor
	}
}

// Type returns the piece type (NoPieceType for Empty)
func (p Piece) Type() PieceType {
	switch {
	case p >= WhitePawn && p <= WhiteKing:
		return PieceType(p)
	case p >= BlackPawn && p <= BlackKing:
		return PieceType(p - 6)
	default:
		return NoPieceType
	}
}

// Channel converts a piece to its plane index.
// Channels 0-5: white Pawn, Knight, Bishop, Rook, Queen, King; 6-11 black.
func (p Piece) Channel() int {
	if p == Empty || p > BlackKing {
		return -1
	}
	return int(p) - 1
}

// Symbol returns the FEN letter, or "." for an empty square
func (p Piece) Symbol() string {
	const symbols = ".PNBRQKpnbrqk"
	if int(p) >= len(symbols) {
		return "?"
	}
	return symbols[p : p+1]
}

// Glyph returns the unicode chess glyph, or "" for an empty square
func (p Piece) Glyph() string {
	glyphs := [...]string{"", "♙", "♘", "♗", "♖", "♕", "♔", "♟", "♞", "♝", "♜", "♛", "♚"}
	if int(p) >= len(glyphs) {
		return "?"
	}
	return glyphs[p]
}

// String returns e.g. "white knight" or "empty"
func (p Piece) String() string {
	if p == Empty {
		return "empty"
	}
	return p.Color().Name() + " " + p.Type().String()
}

// PieceFromSymbol parses a FEN piece letter
func PieceFromSymbol(r rune) (Piece, error) {
	switch r {
	case 'P':
		return WhitePawn, nil
	case 'N':
		return WhiteKnight, nil
	case 'B':
		return WhiteBishop, nil
	case 'R':
		return WhiteRook, nil
	case 'Q':
		return WhiteQueen, nil
	case 'K':
		return WhiteKing, nil
	case 'p':
		return BlackPawn, nil
	case 'n':
		return BlackKnight, nil
	case 'b':
		return BlackBishop, nil
	case 'r':
		return BlackRook, nil
	case 'q':
		return BlackQueen, nil
	case 'k':
		return BlackKing, nil
	}
	return Empty, fmt.Errorf("invalid piece symbol %q", r)
}

// Square is a board index, a1 = 0 ... h8 = 63
type Square int8

// NoSquare marks an absent square (e.g. no en-passant target)
const NoSquare Square = -1

// NewSquare builds a square from 0-based file and rank
func NewSquare(file, rank int) Square {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare
	}
	return Square(rank*8 + file)
}

// File returns the 0-based file (a = 0)
func (s Square) File() int { return int(s) % 8 }

// Rank returns the 0-based rank (rank 1 = 0)
func (s Square) Rank() int { return int(s) / 8 }

// Valid reports whether the square is on the board
func (s Square) Valid() bool { return s >= 0 && s < 64 }

// IsLight reports whether the square is a light square (h1 is light)
func (s Square) IsLight() bool { return (s.File()+s.Rank())%2 == 1 }

// String returns algebraic notation (e.g., "e4")
func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	files := "abcdefgh"
	return fmt.Sprintf("%c%d", files[s.File()], s.Rank()+1)
}

// ParseSquare parses algebraic notation such as "e4"
func ParseSquare(s string) (Square, error) {
	if s == "-" {
		return NoSquare, nil
	}
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return NoSquare, fmt.Errorf("invalid square %q", s)
	}
	return NewSquare(int(s[0]-'a'), int(s[1]-'1')), nil
}
