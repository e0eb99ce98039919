// Package notation keeps the committed game record and renders it as PGN
// and FEN. A Game only grows: moves and resync points are appended, and the
// game may be marked complete once.
package notation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/rules"
)

var (
	// ErrGameComplete is returned when appending to a finished game
	ErrGameComplete = errors.New("game is complete")

	// ErrGameStarted is returned when the start position is changed after play began
	ErrGameStarted = errors.New("game already started")
)

// Headers holds the seven-tag roster values (Result is derived)
type Headers struct {
	Event string `json:"event" yaml:"event"`
	Site  string `json:"site" yaml:"site"`
	Date  string `json:"date" yaml:"date"`
	Round string `json:"round" yaml:"round"`
	White string `json:"white" yaml:"white"`
	Black string `json:"black" yaml:"black"`
}

// DefaultHeaders returns the headers used for analyzed videos, dated today
func DefaultHeaders() Headers {
	return Headers{
		Event: "Chess Video Analysis",
		Site:  "?",
		Date:  time.Now().Format("2006.01.02"),
		Round: "?",
		White: "?",
		Black: "?",
	}
}

// entry is one committed move with the positions around it
type entry struct {
	move   board.Move
	before board.Position
	after  board.Position
}

// Discontinuity marks a resync: after Ply committed moves the game
// continued from Position without a known move.
type Discontinuity struct {
	Ply      int            `json:"ply"`
	Position board.Position `json:"-"`
	FEN      string         `json:"fen"`
}

// MovePair is one numbered line of the move list. Either side may be
// empty when the game starts with black or a resync splits the pair.
type MovePair struct {
	Number int    `json:"number"`
	White  string `json:"white,omitempty"`
	Black  string `json:"black,omitempty"`
}

// Game is the append-only record of one session. Safe for concurrent use.
type Game struct {
	mu sync.RWMutex

	engine  rules.Engine
	headers Headers

	start   board.Position
	current board.Position
	entries []entry
	resyncs []Discontinuity

	repetitions map[string]int
	outcome     board.Outcome
	complete    bool
}

// NewGame creates a game starting from the standard position
func NewGame(engine rules.Engine, headers Headers) *Game {
	start := board.StartingPosition()
	return &Game{
		engine:      engine,
		headers:     headers,
		start:       start,
		current:     start,
		repetitions: map[string]int{start.RepetitionKey(): 1},
		outcome:     board.Ongoing,
	}
}

// Begin sets the start position. Only allowed before anything was recorded.
func (g *Game) Begin(pos board.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.entries) > 0 || len(g.resyncs) > 0 || g.complete {
		return ErrGameStarted
	}
	g.start = pos
	g.current = pos
	g.repetitions = map[string]int{pos.RepetitionKey(): 1}
	return nil
}

// Append plays m from the current position. The move is matched by from,
// to and promotion; the stored copy carries the engine's SAN and flags.
func (g *Game) Append(m board.Move) (board.Move, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.complete {
		return board.Move{}, ErrGameComplete
	}

	succ, err := g.engine.Successors(g.current)
	if err != nil {
		return board.Move{}, fmt.Errorf("failed to enumerate moves: %w", err)
	}
	for _, s := range succ {
		if !s.Move.SameAction(m) {
			continue
		}
		g.entries = append(g.entries, entry{move: s.Move, before: g.current, after: s.Position})
		g.current = s.Position
		g.repetitions[s.Position.RepetitionKey()]++
		return s.Move, nil
	}
	return board.Move{}, fmt.Errorf("%s from %s: %w", m.UCI(), g.current.FEN(), rules.ErrIllegalMove)
}

// Resync continues the game from pos without a move
func (g *Game) Resync(pos board.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.complete {
		return ErrGameComplete
	}
	g.resyncs = append(g.resyncs, Discontinuity{Ply: len(g.entries), Position: pos, FEN: pos.FEN()})
	g.current = pos
	g.repetitions = map[string]int{pos.RepetitionKey(): 1}
	return nil
}

// Finish marks the game complete with outcome. Later calls are ignored.
func (g *Game) Finish(outcome board.Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.complete {
		return
	}
	g.complete = true
	g.outcome = outcome
}

// Repetitions returns how often the current position has occurred since
// the start or the last resync
func (g *Game) Repetitions() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.repetitions[g.current.RepetitionKey()]
}

// Position returns the current position
func (g *Game) Position() board.Position {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// Start returns the position the game began from
func (g *Game) Start() board.Position {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.start
}

// FEN returns the current position as FEN
func (g *Game) FEN() string {
	return g.Position().FEN()
}

// FENAt returns the position after ply committed moves (0 is the start)
func (g *Game) FENAt(ply int) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if ply < 0 || ply > len(g.entries) {
		return "", fmt.Errorf("ply %d out of range 0..%d", ply, len(g.entries))
	}
	if ply == 0 {
		return g.start.FEN(), nil
	}
	return g.entries[ply-1].after.FEN(), nil
}

// Moves returns a copy of the committed moves
func (g *Game) Moves() []board.Move {
	g.mu.RLock()
	defer g.mu.RUnlock()

	moves := make([]board.Move, len(g.entries))
	for i, e := range g.entries {
		moves[i] = e.move
	}
	return moves
}

// Len returns the number of committed moves
func (g *Game) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Discontinuities returns a copy of the resync points
func (g *Game) Discontinuities() []Discontinuity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Discontinuity(nil), g.resyncs...)
}

// MovePairs groups SAN moves by move number
func (g *Game) MovePairs() []MovePair {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var pairs []MovePair
	for i, e := range g.entries {
		n := e.before.FullmoveNumber
		split := g.resyncAt(i)
		if e.before.Turn == board.White || len(pairs) == 0 || split || pairs[len(pairs)-1].Number != n || pairs[len(pairs)-1].Black != "" {
			pairs = append(pairs, MovePair{Number: n})
		}
		last := &pairs[len(pairs)-1]
		if e.before.Turn == board.White {
			last.White = e.move.SAN
		} else {
			last.Black = e.move.SAN
		}
	}
	return pairs
}

func (g *Game) resyncAt(ply int) bool {
	for _, d := range g.resyncs {
		if d.Ply == ply {
			return true
		}
	}
	return false
}

// Outcome returns the recorded outcome (Ongoing until Finish)
func (g *Game) Outcome() board.Outcome {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.outcome
}

// Complete reports whether the game was marked finished
func (g *Game) Complete() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.complete
}

// Headers returns the tag values
func (g *Game) Headers() Headers {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.headers
}

// Replay applies moves from start through engine and returns the final
// position. Used to verify that an exported record is self-consistent.
func Replay(engine rules.Engine, start board.Position, moves []board.Move) (board.Position, error) {
	pos := start
	for i, m := range moves {
		next, err := engine.Apply(pos, m)
		if err != nil {
			return pos, fmt.Errorf("move %d (%s): %w", i+1, m, err)
		}
		pos = next
	}
	return pos, nil
}
