// Package tracker infers committed moves from the stream of validated
// positions. Each new position is matched against the placements produced
// by every legal move from the current state; exactly one match commits.
package tracker

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/notation"
	"github.com/thyrook/boardscribe/internal/rules"
)

// FivefoldLimit is the occurrence count that ends the game as a draw
const FivefoldLimit = 5

// ErrNotStarted is returned when positions arrive before the initial one
var ErrNotStarted = errors.New("tracker has no initial position")

// State is the tracker lifecycle
type State int

const (
	Waiting State = iota
	Tracking
	Terminal
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Tracking:
		return "tracking"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Observation reports what one validated position did to the game
type Observation struct {
	Committed bool
	Move      board.Move

	// Candidates is the number of legal moves whose result matched.
	Candidates int
	Ambiguous  bool

	// Terminal is set when the game is over (before or because of this position).
	Terminal bool
	Outcome  board.Outcome
}

// Tracker is the per-session move inference state machine
type Tracker struct {
	engine rules.Engine
	game   *notation.Game
	logger *zap.Logger

	state       State
	ambiguities int
}

// New creates a tracker that records into game
func New(engine rules.Engine, game *notation.Game, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		engine: engine,
		game:   game,
		logger: logger,
	}
}

// State returns the lifecycle state
func (t *Tracker) State() State { return t.state }

// Ambiguities returns how many commits needed the tie-break
func (t *Tracker) Ambiguities() int { return t.ambiguities }

// Current returns the current position; ok is false before Start
func (t *Tracker) Current() (board.Position, bool) {
	if t.state == Waiting {
		return board.Position{}, false
	}
	return t.game.Position(), true
}

// Start sets the initial position. A position that is already terminal
// finishes the game immediately.
func (t *Tracker) Start(pos board.Position) (Observation, error) {
	if t.state != Waiting {
		return Observation{}, fmt.Errorf("tracker already started: %w", notation.ErrGameStarted)
	}
	if err := t.game.Begin(pos); err != nil {
		return Observation{}, err
	}
	t.state = Tracking
	return t.checkTerminal(pos)
}

// Observe matches pos against the legal moves from the current position
// and commits the move that produces it
func (t *Tracker) Observe(pos board.Position) (Observation, error) {
	switch t.state {
	case Waiting:
		return Observation{}, ErrNotStarted
	case Terminal:
		return Observation{Terminal: true, Outcome: t.game.Outcome()}, nil
	}

	current := t.game.Position()
	if pos.Placement == current.Placement {
		return Observation{}, nil
	}

	succ, err := t.engine.Successors(current)
	if err != nil {
		return Observation{}, fmt.Errorf("failed to enumerate moves: %w", err)
	}
	matches := rules.MatchPlacement(succ, pos.Placement)

	obs := Observation{Candidates: len(matches)}
	switch len(matches) {
	case 0:
		t.logger.Debug("No legal move matches position", zap.String("placement", pos.Placement.FEN()))
		return obs, nil
	case 1:
	default:
		obs.Ambiguous = true
		t.ambiguities++
	}

	chosen := TieBreak(matches)
	if obs.Ambiguous {
		uci := make([]string, len(matches))
		for i, m := range matches {
			uci[i] = m.Move.UCI()
		}
		t.logger.Warn("Ambiguous move, applying tie-break",
			zap.Strings("candidates", uci),
			zap.String("chosen", chosen.Move.UCI()))
	}

	move, err := t.game.Append(chosen.Move)
	if err != nil {
		return obs, fmt.Errorf("failed to commit %s: %w", chosen.Move.UCI(), err)
	}
	obs.Committed = true
	obs.Move = move
	t.logger.Info("Move committed",
		zap.String("san", move.SAN),
		zap.String("uci", move.UCI()),
		zap.Int("ply", t.game.Len()))

	term, err := t.checkTerminal(t.game.Position())
	if err != nil {
		return obs, err
	}
	obs.Terminal = term.Terminal
	obs.Outcome = term.Outcome
	return obs, nil
}

// Resync replaces the current position without a move. The jump is
// recorded in the game as a discontinuity. Ignored once terminal.
func (t *Tracker) Resync(pos board.Position) (Observation, error) {
	switch t.state {
	case Waiting:
		return t.Start(pos)
	case Terminal:
		return Observation{Terminal: true, Outcome: t.game.Outcome()}, nil
	}
	if err := t.game.Resync(pos); err != nil {
		return Observation{}, err
	}
	t.logger.Warn("Game resynchronized", zap.String("fen", pos.FEN()))
	return t.checkTerminal(pos)
}

func (t *Tracker) checkTerminal(pos board.Position) (Observation, error) {
	out, err := t.engine.Outcome(pos)
	if err != nil {
		return Observation{}, fmt.Errorf("failed to evaluate outcome: %w", err)
	}
	if !out.Terminal() && t.game.Repetitions() >= FivefoldLimit {
		out = board.Outcome{Result: board.ResultDraw, Termination: board.FivefoldRepetition}
	}
	if !out.Terminal() {
		return Observation{Outcome: out}, nil
	}

	t.game.Finish(out)
	t.state = Terminal
	t.logger.Info("Game over", zap.Stringer("outcome", out))
	return Observation{Terminal: true, Outcome: out}, nil
}

// TieBreak orders equivalent candidates: captures before quiet moves,
// queen promotions before underpromotions, then (from, to, promotion).
func TieBreak(candidates []rules.Successor) rules.Successor {
	sorted := append([]rules.Successor(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Move, sorted[j].Move
		if a.Capture != b.Capture {
			return a.Capture
		}
		if qa, qb := underpromotes(a), underpromotes(b); qa != qb {
			return !qa
		}
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Promotion < b.Promotion
	})
	return sorted[0]
}

func underpromotes(m board.Move) bool {
	return m.Promotion != board.NoPieceType && m.Promotion != board.Queen
}
