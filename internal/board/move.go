package board

import "fmt"

// Special tags moves whose board effect goes beyond from/to
type Special uint8

const (
	NoSpecial Special = iota
	CastleKingside
	CastleQueenside
	EnPassant
	Promotion
)

// String names the special move
func (s Special) String() string {
	switch s {
	case CastleKingside:
		return "castle-kingside"
	case CastleQueenside:
		return "castle-queenside"
	case EnPassant:
		return "en-passant"
	case Promotion:
		return "promotion"
	default:
		return "none"
	}
}

// Move is one committed half-move. Values are copied, never shared, so a Move
// appended to a game cannot change afterwards.
type Move struct {
	From      Square    `json:"from"`
	To        Square    `json:"to"`
	Piece     Piece     `json:"piece"`
	Capture   bool      `json:"capture"`
	Special   Special   `json:"special"`
	Promotion PieceType `json:"promotion,omitempty"`
	SAN       string    `json:"san"`
}

// UCI returns long algebraic notation (e.g. "e2e4", "e7e8q")
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoPieceType {
		s += map[PieceType]string{Knight: "n", Bishop: "b", Rook: "r", Queen: "q"}[m.Promotion]
	}
	return s
}

// SameAction reports whether two moves have the same from, to and promotion
func (m Move) SameAction(other Move) bool {
	return m.From == other.From && m.To == other.To && m.Promotion == other.Promotion
}

// String returns SAN when known, otherwise UCI
func (m Move) String() string {
	if m.SAN != "" {
		return m.SAN
	}
	return m.UCI()
}

// Result is the PGN game result token
type Result string

const (
	ResultOngoing   Result = "*"
	ResultWhiteWins Result = "1-0"
	ResultBlackWins Result = "0-1"
	ResultDraw      Result = "1/2-1/2"
)

// Termination names why a game ended
type Termination int

const (
	NotTerminated Termination = iota
	Checkmate
	Stalemate
	InsufficientMaterial
	SeventyFiveMoveRule
	FivefoldRepetition
)

// String names the termination
func (t Termination) String() string {
	switch t {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case InsufficientMaterial:
		return "insufficient material"
	case SeventyFiveMoveRule:
		return "seventy-five-move rule"
	case FivefoldRepetition:
		return "fivefold repetition"
	default:
		return "none"
	}
}

// Outcome is the terminal status of a position
type Outcome struct {
	Result      Result      `json:"result"`
	Termination Termination `json:"termination"`
}

// Ongoing is the outcome of a non-terminal position
var Ongoing = Outcome{Result: ResultOngoing, Termination: NotTerminated}

// Terminal reports whether the game is over
func (o Outcome) Terminal() bool { return o.Termination != NotTerminated }

// String renders e.g. "1-0 (checkmate)"
func (o Outcome) String() string {
	if !o.Terminal() {
		return string(ResultOngoing)
	}
	return fmt.Sprintf("%s (%s)", o.Result, o.Termination)
}
