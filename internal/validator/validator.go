// Package validator turns raw 64-square readings into validated positions.
// It fills sparse uncertain squares from the previous position, enforces the
// hard placement invariants, and accepts a change only when a single legal
// half-move explains it. Unexplained changes are retained as noise until the
// retry budget runs out, after which a legal reading becomes a resync point
// and an illegal one is reported as a desync.
package validator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/extractor"
	"github.com/thyrook/boardscribe/internal/rules"
)

var (
	// ErrLowConfidence means too many squares were uncertain to use the frame
	ErrLowConfidence = errors.New("low confidence position")

	// ErrIllegalPosition means the placement breaks a hard chess invariant
	ErrIllegalPosition = errors.New("illegal position")

	// ErrNoSingleMove means no single legal half-move explains the change
	ErrNoSingleMove = errors.New("no single legal move explains the change")

	// ErrUnknownStart means an occupancy-only reading arrived with no
	// previous position and does not match the standard start
	ErrUnknownStart = errors.New("occupancy reading does not match the starting position")
)

// Decision is what the validator did with a reading
type Decision int

const (
	Initial Decision = iota
	Unchanged
	Accepted
	Retained
	Blocked
	Resync
	// Desync means the reading stayed unexplained past the retry budget and
	// could not be adopted; the previous position stands.
	Desync
)

func (d Decision) String() string {
	switch d {
	case Initial:
		return "initial"
	case Unchanged:
		return "unchanged"
	case Accepted:
		return "accepted"
	case Retained:
		return "retained"
	case Blocked:
		return "blocked"
	case Resync:
		return "resync"
	case Desync:
		return "desync"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Config holds validation parameters
type Config struct {
	// MaxUncertainFill is the most uncertain squares that may be filled in
	// from the previous position.
	MaxUncertainFill int

	// RetryBudget is how many consecutive unexplained readings are retained
	// before the next one is resolved as a resync or reported as a desync.
	RetryBudget int

	// InitialTurn is the side to move for a non-standard first position.
	InitialTurn board.Color
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxUncertainFill: 2,
		RetryBudget:      6,
		InitialTurn:      board.White,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.MaxUncertainFill < 0 || c.MaxUncertainFill > 64 {
		return fmt.Errorf("max uncertain fill must be between 0 and 64, got %d", c.MaxUncertainFill)
	}
	if c.RetryBudget < 0 {
		return fmt.Errorf("retry budget must be non-negative, got %d", c.RetryBudget)
	}
	if c.InitialTurn != board.White && c.InitialTurn != board.Black {
		return fmt.Errorf("initial turn must be white or black")
	}
	return nil
}

// Result is the outcome of validating one reading
type Result struct {
	Decision Decision

	// Position is the validated position to use from now on. For Retained,
	// Blocked and Desync it is the previous position (zero if there was none).
	Position board.Position

	// Reason explains every decision but Initial, Unchanged and Accepted.
	Reason error

	// Issues are soft warnings about the placement.
	Issues []string

	Uncertain []board.Square
	Filled    int
	Retries   int

	// SearchDepth is how many half-moves the resync search needed to
	// reach the placement, or 0 when metadata had to be inferred.
	SearchDepth int
}

// Validator holds the retry counter for one session
type Validator struct {
	engine  rules.Engine
	config  Config
	logger  *zap.Logger
	retries int
}

// New creates a validator
func New(engine rules.Engine, config Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		engine: engine,
		config: config,
		logger: logger,
	}
}

// Retries returns the current count of consecutive unexplained readings
func (v *Validator) Retries() int { return v.retries }

// Reset clears the retry counter
func (v *Validator) Reset() { v.retries = 0 }

// Validate checks reading against prev (nil at session start). The returned
// error is reserved for rules engine failures; every other outcome is a
// Decision.
func (v *Validator) Validate(reading extractor.Reading, prev *board.Position) (Result, error) {
	pl := reading.Placement()
	uncertain := reading.UncertainSquares()

	res := Result{Uncertain: uncertain}
	if prev != nil {
		res.Position = *prev
	}

	if len(uncertain) > 0 {
		if prev == nil || len(uncertain) > v.config.MaxUncertainFill {
			res.Decision = Blocked
			res.Reason = fmt.Errorf("%w: %d uncertain squares", ErrLowConfidence, len(uncertain))
			res.Retries = v.retries
			return res, nil
		}
		for _, sq := range uncertain {
			pl[sq] = prev.Placement[sq]
		}
		res.Filled = len(uncertain)
	}

	if reading.ColorOnly() {
		return v.occupancy(pl, prev, res)
	}

	res.Issues = Issues(pl)

	if prev == nil {
		return v.initial(pl, res)
	}

	if pl == prev.Placement {
		v.retries = 0
		res.Decision = Unchanged
		return res, nil
	}

	invalid := Check(pl)
	if invalid == nil {
		succ, err := v.engine.Successors(*prev)
		if err != nil {
			return res, fmt.Errorf("failed to enumerate moves: %w", err)
		}
		if matches := rules.MatchPlacement(succ, pl); len(matches) > 0 {
			v.retries = 0
			res.Decision = Accepted
			res.Position = matches[0].Position
			return res, nil
		}
	}

	reason := invalid
	if reason == nil {
		reason = ErrNoSingleMove
	}
	if !v.retain(&res, reason) {
		return res, nil
	}

	// Illegal placements are never adopted, however long they persist.
	if invalid != nil {
		return v.desync(*prev, res), nil
	}

	pos, depth, err := v.resolve(*prev, pl)
	if err != nil {
		return res, err
	}
	return v.resync(*prev, pos, depth, res), nil
}

// retain counts an unexplained reading and reports whether the retry budget
// is exhausted.
func (v *Validator) retain(res *Result, reason error) bool {
	v.retries++
	res.Retries = v.retries
	res.Decision = Retained
	res.Reason = reason
	if v.retries <= v.config.RetryBudget {
		v.logger.Debug("Reading retained",
			zap.Int("retries", v.retries),
			zap.Error(reason))
		return false
	}
	return true
}

func (v *Validator) resync(prev, pos board.Position, depth int, res Result) Result {
	v.retries = 0
	res.Decision = Resync
	res.Position = pos
	res.SearchDepth = depth
	v.logger.Warn("Position desynchronized, resyncing",
		zap.String("from", prev.FEN()),
		zap.String("to", pos.FEN()),
		zap.Int("search_depth", depth))
	return res
}

// desync reports a reading that outlived the retry budget without becoming
// adoptable. The counter restarts, so the warning repeats for as long as the
// condition lasts.
func (v *Validator) desync(prev board.Position, res Result) Result {
	v.retries = 0
	res.Decision = Desync
	v.logger.Warn("Position desynchronized, keeping previous position",
		zap.String("fen", prev.FEN()),
		zap.Int("retries", res.Retries),
		zap.Error(res.Reason))
	return res
}

// occupancy validates a reading that knows colors but not piece types. The
// types come from the legal successor whose occupancy pattern matches; a
// session can only start from the standard starting position.
func (v *Validator) occupancy(pl board.Placement, prev *board.Position, res Result) (Result, error) {
	if prev == nil {
		start := board.StartingPosition()
		if !rules.SameOccupancy(pl, start.Placement) {
			res.Decision = Blocked
			res.Reason = ErrUnknownStart
			return res, nil
		}
		v.retries = 0
		res.Decision = Initial
		res.Position = start
		v.logger.Info("Initial position", zap.String("fen", start.FEN()))
		return res, nil
	}

	if rules.SameOccupancy(pl, prev.Placement) {
		v.retries = 0
		res.Decision = Unchanged
		return res, nil
	}

	succ, err := v.engine.Successors(*prev)
	if err != nil {
		return res, fmt.Errorf("failed to enumerate moves: %w", err)
	}
	if matches := rules.MatchOccupancy(succ, pl); len(matches) > 0 {
		v.retries = 0
		res.Decision = Accepted
		res.Position = preferQueen(matches).Position
		return res, nil
	}

	if !v.retain(&res, ErrNoSingleMove) {
		return res, nil
	}

	for _, s1 := range succ {
		second, err := v.engine.Successors(s1.Position)
		if err != nil {
			return res, fmt.Errorf("failed to enumerate moves: %w", err)
		}
		if matches := rules.MatchOccupancy(second, pl); len(matches) > 0 {
			return v.resync(*prev, preferQueen(matches).Position, 2, res), nil
		}
	}

	// Without piece types there is nothing to infer a position from.
	return v.desync(*prev, res), nil
}

// preferQueen picks among successors that differ only in the promoted piece.
func preferQueen(matches []rules.Successor) rules.Successor {
	for _, m := range matches {
		if m.Move.Promotion == board.Queen {
			return m
		}
	}
	return matches[0]
}

func (v *Validator) initial(pl board.Placement, res Result) (Result, error) {
	if err := Check(pl); err != nil {
		res.Decision = Blocked
		res.Reason = err
		return res, nil
	}

	start := board.StartingPosition()
	pos := start
	if pl != start.Placement {
		pos = board.Position{
			Placement:      pl,
			Turn:           v.config.InitialTurn,
			Castling:       board.InferCastling(pl),
			EnPassant:      board.NoSquare,
			FullmoveNumber: 1,
		}
		// A side in check must be the side to move.
		if CheckTurn(pos) != nil {
			pos.Turn = pos.Turn.Other()
		}
	}

	res.Decision = Initial
	res.Position = pos
	v.retries = 0
	v.logger.Info("Initial position", zap.String("fen", pos.FEN()))
	return res, nil
}

// resolve finds full metadata for a resync placement. Two half-moves from
// prev are searched first; failing that the metadata is inferred.
func (v *Validator) resolve(prev board.Position, pl board.Placement) (board.Position, int, error) {
	first, err := v.engine.Successors(prev)
	if err != nil {
		return board.Position{}, 0, fmt.Errorf("failed to enumerate moves: %w", err)
	}
	for _, s1 := range first {
		second, err := v.engine.Successors(s1.Position)
		if err != nil {
			return board.Position{}, 0, fmt.Errorf("failed to enumerate moves: %w", err)
		}
		if matches := rules.MatchPlacement(second, pl); len(matches) > 0 {
			return matches[0].Position, 2, nil
		}
	}

	return InferPosition(prev, pl), 0, nil
}

// InferPosition builds a position for pl continuing from prev when no
// move sequence is known. The turn passes to the other side unless that
// would leave the side not to move in check.
func InferPosition(prev board.Position, pl board.Placement) board.Position {
	pos := board.Position{
		Placement:      pl,
		Turn:           prev.Turn.Other(),
		Castling:       prev.Castling & board.InferCastling(pl),
		EnPassant:      board.NoSquare,
		FullmoveNumber: prev.FullmoveNumber,
	}
	if CheckTurn(pos) != nil {
		pos.Turn = prev.Turn
	}
	if prev.Turn == board.Black && pos.Turn == board.White {
		pos.FullmoveNumber++
	}
	return pos
}
