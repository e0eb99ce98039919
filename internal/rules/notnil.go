package rules

import (
	"fmt"
	"sort"

	"github.com/notnil/chess"

	"github.com/thyrook/boardscribe/internal/board"
)

// seventyFiveMoveHalfmoves is the halfmove clock at which the game is drawn automatically
const seventyFiveMoveHalfmoves = 150

// NotnilEngine implements Engine on top of github.com/notnil/chess.
// Positions cross the boundary as FEN, so the engine holds no state.
type NotnilEngine struct {
	notation chess.AlgebraicNotation
}

// NewEngine creates a rules engine
func NewEngine() *NotnilEngine {
	return &NotnilEngine{}
}

func (e *NotnilEngine) load(pos board.Position) (*chess.Position, error) {
	opt, err := chess.FEN(pos.FEN())
	if err != nil {
		return nil, fmt.Errorf("failed to load position %q: %w", pos.FEN(), err)
	}
	return chess.NewGame(opt).Position(), nil
}

// Successors implements Engine
func (e *NotnilEngine) Successors(pos board.Position) ([]Successor, error) {
	cp, err := e.load(pos)
	if err != nil {
		return nil, err
	}

	valid := cp.ValidMoves()
	out := make([]Successor, 0, len(valid))
	for _, m := range valid {
		next, err := board.ParseFEN(cp.Update(m).String())
		if err != nil {
			return nil, fmt.Errorf("failed to decode successor of %s: %w", m, err)
		}
		out = append(out, Successor{
			Move:     e.convertMove(cp, m),
			Position: next,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return moveLess(out[i].Move, out[j].Move)
	})
	return out, nil
}

// Apply implements Engine
func (e *NotnilEngine) Apply(pos board.Position, m board.Move) (board.Position, error) {
	cp, err := e.load(pos)
	if err != nil {
		return board.Position{}, err
	}

	for _, vm := range cp.ValidMoves() {
		if board.Square(vm.S1()) != m.From || board.Square(vm.S2()) != m.To {
			continue
		}
		if fromPieceType(vm.Promo()) != m.Promotion {
			continue
		}
		next, err := board.ParseFEN(cp.Update(vm).String())
		if err != nil {
			return board.Position{}, fmt.Errorf("failed to decode position after %s: %w", m.UCI(), err)
		}
		return next, nil
	}

	return board.Position{}, fmt.Errorf("%s in %q: %w", m.UCI(), pos.FEN(), ErrIllegalMove)
}

// Resolve returns the fully described legal move matching m's from, to and promotion
func (e *NotnilEngine) Resolve(pos board.Position, m board.Move) (board.Move, error) {
	cp, err := e.load(pos)
	if err != nil {
		return board.Move{}, err
	}
	for _, vm := range cp.ValidMoves() {
		if board.Square(vm.S1()) == m.From && board.Square(vm.S2()) == m.To &&
			fromPieceType(vm.Promo()) == m.Promotion {
			return e.convertMove(cp, vm), nil
		}
	}
	return board.Move{}, fmt.Errorf("%s in %q: %w", m.UCI(), pos.FEN(), ErrIllegalMove)
}

// Outcome implements Engine
func (e *NotnilEngine) Outcome(pos board.Position) (board.Outcome, error) {
	cp, err := e.load(pos)
	if err != nil {
		return board.Outcome{}, err
	}

	switch cp.Status() {
	case chess.Checkmate:
		result := board.ResultWhiteWins
		if pos.Turn == board.White {
			result = board.ResultBlackWins
		}
		return board.Outcome{Result: result, Termination: board.Checkmate}, nil
	case chess.Stalemate:
		return board.Outcome{Result: board.ResultDraw, Termination: board.Stalemate}, nil
	}

	if InsufficientMaterial(pos.Placement) {
		return board.Outcome{Result: board.ResultDraw, Termination: board.InsufficientMaterial}, nil
	}
	if pos.HalfmoveClock >= seventyFiveMoveHalfmoves {
		return board.Outcome{Result: board.ResultDraw, Termination: board.SeventyFiveMoveRule}, nil
	}
	return board.Ongoing, nil
}

func (e *NotnilEngine) convertMove(cp *chess.Position, m *chess.Move) board.Move {
	mv := board.Move{
		From:      board.Square(m.S1()),
		To:        board.Square(m.S2()),
		Piece:     fromPiece(cp.Board().Piece(m.S1())),
		Capture:   m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant),
		Promotion: fromPieceType(m.Promo()),
		SAN:       e.notation.Encode(cp, m),
	}

	switch {
	case m.HasTag(chess.KingSideCastle):
		mv.Special = board.CastleKingside
	case m.HasTag(chess.QueenSideCastle):
		mv.Special = board.CastleQueenside
	case m.HasTag(chess.EnPassant):
		mv.Special = board.EnPassant
	case mv.Promotion != board.NoPieceType:
		mv.Special = board.Promotion
	}
	return mv
}

func moveLess(a, b board.Move) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	if a.To != b.To {
		return a.To < b.To
	}
	return a.Promotion < b.Promotion
}

func fromPieceType(pt chess.PieceType) board.PieceType {
	switch pt {
	case chess.Pawn:
		return board.Pawn
	case chess.Knight:
		return board.Knight
	case chess.Bishop:
		return board.Bishop
	case chess.Rook:
		return board.Rook
	case chess.Queen:
		return board.Queen
	case chess.King:
		return board.King
	default:
		return board.NoPieceType
	}
}

func fromPiece(p chess.Piece) board.Piece {
	var c board.Color
	switch p.Color() {
	case chess.White:
		c = board.White
	case chess.Black:
		c = board.Black
	default:
		return board.Empty
	}
	return board.NewPiece(c, fromPieceType(p.Type()))
}
