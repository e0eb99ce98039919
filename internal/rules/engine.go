// Package rules exposes the chess rules the pipeline consults: legal-move
// enumeration, move application and terminal-state detection.
package rules

import (
	"errors"

	"github.com/thyrook/boardscribe/internal/board"
)

// ErrIllegalMove is returned when a move is not legal in the given position
var ErrIllegalMove = errors.New("illegal move")

// Successor is one legal move together with the position it produces
type Successor struct {
	Move     board.Move
	Position board.Position
}

// Engine is a stateless rules oracle. Implementations must be safe for
// concurrent use by multiple sessions.
type Engine interface {
	// Successors returns every legal move from pos with its resulting
	// position, ordered by (from, to, promotion).
	Successors(pos board.Position) ([]Successor, error)

	// Apply plays m (matched by from, to and promotion) and returns the
	// resulting position. Unknown moves yield ErrIllegalMove.
	Apply(pos board.Position, m board.Move) (board.Position, error)

	// Outcome reports whether pos is terminal by board state alone
	// (checkmate, stalemate, insufficient material, seventy-five-move rule).
	Outcome(pos board.Position) (board.Outcome, error)
}

// LegalMoves returns only the moves of e.Successors
func LegalMoves(e Engine, pos board.Position) ([]board.Move, error) {
	succ, err := e.Successors(pos)
	if err != nil {
		return nil, err
	}
	moves := make([]board.Move, len(succ))
	for i, s := range succ {
		moves[i] = s.Move
	}
	return moves, nil
}

// MatchPlacement returns the successors whose placement equals target
func MatchPlacement(succ []Successor, target board.Placement) []Successor {
	var out []Successor
	for _, s := range succ {
		if s.Position.Placement == target {
			out = append(out, s)
		}
	}
	return out
}

// SameOccupancy reports whether a and b have pieces of the same color on the
// same squares, ignoring piece types.
func SameOccupancy(a, b board.Placement) bool {
	for i := range a {
		if (a[i] == board.Empty) != (b[i] == board.Empty) {
			return false
		}
		if a[i] != board.Empty && a[i].Color() != b[i].Color() {
			return false
		}
	}
	return true
}

// MatchOccupancy returns the successors whose occupancy pattern equals
// target's. Only promotions to different pieces share a pattern.
func MatchOccupancy(succ []Successor, target board.Placement) []Successor {
	var out []Successor
	for _, s := range succ {
		if SameOccupancy(s.Position.Placement, target) {
			out = append(out, s)
		}
	}
	return out
}
