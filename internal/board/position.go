package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartingFEN is the standard initial position
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Placement is the piece content of all 64 squares, indexed by Square
type Placement [64]Piece

// At returns the piece on a square
func (pl Placement) At(sq Square) Piece {
	if !sq.Valid() {
		return Empty
	}
	return pl[sq]
}

// Count returns how many times a piece occurs
func (pl Placement) Count(p Piece) int {
	n := 0
	for _, q := range pl {
		if q == p {
			n++
		}
	}
	return n
}

// CountColor returns the number of pieces of one color
func (pl Placement) CountColor(c Color) int {
	n := 0
	for _, q := range pl {
		if q != Empty && q.Color() == c {
			n++
		}
	}
	return n
}

// Diff returns the squares whose content differs between two placements
func (pl Placement) Diff(other Placement) []Square {
	var changed []Square
	for i := range pl {
		if pl[i] != other[i] {
			changed = append(changed, Square(i))
		}
	}
	return changed
}

// KingSquare returns the first square holding the king of the given color
func (pl Placement) KingSquare(c Color) Square {
	king := NewPiece(c, King)
	for i, p := range pl {
		if p == king {
			return Square(i)
		}
	}
	return NoSquare
}

// FEN renders the piece placement field
func (pl Placement) FEN() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			p := pl[rank*8+file]
			if p == Empty {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(p.Symbol())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// ParsePlacement parses the piece placement field of a FEN string
func ParsePlacement(field string) (Placement, error) {
	var pl Placement
	ranks := strings.Split(field, "/")
	if len(ranks) != 8 {
		return pl, fmt.Errorf("placement has %d ranks, want 8", len(ranks))
	}
	for i, row := range ranks {
		rank := 7 - i
		file := 0
		for _, r := range row {
			if r >= '1' && r <= '8' {
				file += int(r - '0')
				continue
			}
			p, err := PieceFromSymbol(r)
			if err != nil {
				return pl, err
			}
			if file > 7 {
				return pl, fmt.Errorf("rank %d overflows", rank+1)
			}
			pl[rank*8+file] = p
			file++
		}
		if file != 8 {
			return pl, fmt.Errorf("rank %d has %d files, want 8", rank+1, file)
		}
	}
	return pl, nil
}

// CastlingRights is a bit set of the four castling options
type CastlingRights uint8

const (
	WhiteKingside CastlingRights = 1 << iota
	WhiteQueenside
	BlackKingside
	BlackQueenside

	NoCastling  CastlingRights = 0
	AllCastling                = WhiteKingside | WhiteQueenside | BlackKingside | BlackQueenside
)

// Has reports whether all bits in r are set
func (cr CastlingRights) Has(r CastlingRights) bool { return cr&r == r }

// String renders the FEN castling field
func (cr CastlingRights) String() string {
	var sb strings.Builder
	if cr.Has(WhiteKingside) {
		sb.WriteByte('K')
	}
	if cr.Has(WhiteQueenside) {
		sb.WriteByte('Q')
	}
	if cr.Has(BlackKingside) {
		sb.WriteByte('k')
	}
	if cr.Has(BlackQueenside) {
		sb.WriteByte('q')
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}

// ParseCastling parses the FEN castling field
func ParseCastling(field string) (CastlingRights, error) {
	if field == "-" {
		return NoCastling, nil
	}
	var cr CastlingRights
	for _, r := range field {
		switch r {
		case 'K':
			cr |= WhiteKingside
		case 'Q':
			cr |= WhiteQueenside
		case 'k':
			cr |= BlackKingside
		case 'q':
			cr |= BlackQueenside
		default:
			return NoCastling, fmt.Errorf("invalid castling field %q", field)
		}
	}
	return cr, nil
}

// InferCastling returns the rights still plausible from piece placement alone:
// the king and the relevant rook must stand on their home squares.
func InferCastling(pl Placement) CastlingRights {
	var cr CastlingRights
	if pl[4] == WhiteKing {
		if pl[7] == WhiteRook {
			cr |= WhiteKingside
		}
		if pl[0] == WhiteRook {
			cr |= WhiteQueenside
		}
	}
	if pl[60] == BlackKing {
		if pl[63] == BlackRook {
			cr |= BlackKingside
		}
		if pl[56] == BlackRook {
			cr |= BlackQueenside
		}
	}
	return cr
}

// Position is a full game state: placement plus everything FEN records
type Position struct {
	Placement      Placement
	Turn           Color
	Castling       CastlingRights
	EnPassant      Square
	HalfmoveClock  int
	FullmoveNumber int
}

// StartingPosition returns the standard initial position
func StartingPosition() Position {
	pos, err := ParseFEN(StartingFEN)
	if err != nil {
		panic(err)
	}
	return pos
}

// FEN renders the position as a six-field FEN string
func (p Position) FEN() string {
	return fmt.Sprintf("%s %s %s %s %d %d",
		p.Placement.FEN(), p.Turn, p.Castling, p.EnPassant, p.HalfmoveClock, p.FullmoveNumber)
}

// String returns the FEN
func (p Position) String() string { return p.FEN() }

// SamePlacement reports whether both positions show identical pieces on every square
func (p Position) SamePlacement(other Position) bool {
	return p.Placement == other.Placement
}

// RepetitionKey identifies the position for repetition counting
// (placement, side to move, castling rights, en-passant target).
func (p Position) RepetitionKey() string {
	return fmt.Sprintf("%s %s %s %s", p.Placement.FEN(), p.Turn, p.Castling, p.EnPassant)
}

// ParseFEN parses a FEN string. Clock fields are optional and default to "0 1".
func ParseFEN(fen string) (Position, error) {
	fields := strings.Fields(fen)
	if len(fields) != 4 && len(fields) != 6 {
		return Position{}, fmt.Errorf("fen %q: want 4 or 6 fields, got %d", fen, len(fields))
	}

	placement, err := ParsePlacement(fields[0])
	if err != nil {
		return Position{}, fmt.Errorf("fen %q: %w", fen, err)
	}

	pos := Position{Placement: placement, EnPassant: NoSquare, FullmoveNumber: 1}

	switch fields[1] {
	case "w":
		pos.Turn = White
	case "b":
		pos.Turn = Black
	default:
		return Position{}, fmt.Errorf("fen %q: invalid side to move %q", fen, fields[1])
	}

	if pos.Castling, err = ParseCastling(fields[2]); err != nil {
		return Position{}, fmt.Errorf("fen %q: %w", fen, err)
	}
	if pos.EnPassant, err = ParseSquare(fields[3]); err != nil {
		return Position{}, fmt.Errorf("fen %q: %w", fen, err)
	}

	if len(fields) == 6 {
		if pos.HalfmoveClock, err = strconv.Atoi(fields[4]); err != nil || pos.HalfmoveClock < 0 {
			return Position{}, fmt.Errorf("fen %q: invalid halfmove clock %q", fen, fields[4])
		}
		if pos.FullmoveNumber, err = strconv.Atoi(fields[5]); err != nil || pos.FullmoveNumber < 1 {
			return Position{}, fmt.Errorf("fen %q: invalid fullmove number %q", fen, fields[5])
		}
	}

	return pos, nil
}

// Diagram returns a human-readable board with rank 8 at the top
func (pl Placement) Diagram() string {
	var sb strings.Builder
	sb.WriteString("\n  a b c d e f g h\n")
	for rank := 7; rank >= 0; rank-- {
		sb.WriteString(fmt.Sprintf("%d ", rank+1))
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			p := pl[sq]
			switch {
			case p != Empty:
				sb.WriteString(p.Glyph() + " ")
			case sq.IsLight():
				sb.WriteString("□ ")
			default:
				sb.WriteString("■ ")
			}
		}
		sb.WriteString(fmt.Sprintf("%d\n", rank+1))
	}
	sb.WriteString("  a b c d e f g h\n")
	return sb.String()
}
