package pipeline

import (
	"fmt"
	"time"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/validator"
)

// Kind classifies the per-frame output
type Kind int

const (
	BoardNotFound Kind = iota
	PositionUnchanged
	PositionUpdated
	MoveCommitted
	DesyncWarning

	// Skipped frames were dropped by the sample-rate hint
	Skipped
)

// String returns the metric-friendly name
func (k Kind) String() string {
	switch k {
	case BoardNotFound:
		return "board_not_found"
	case PositionUnchanged:
		return "position_unchanged"
	case PositionUpdated:
		return "position_updated"
	case MoveCommitted:
		return "move_committed"
	case DesyncWarning:
		return "desync_warning"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the outcome of one frame
type Result struct {
	Kind       Kind
	FrameIndex int64
	Timestamp  time.Duration

	// Locator details
	Lost   bool
	Reused bool

	// Calibrating is set while the board orientation is not yet locked.
	Calibrating bool

	// Validated is false when the frame never reached the validator.
	Validated bool
	Decision  validator.Decision

	// Reason explains frames that did not advance the game.
	Reason error
	Issues []string

	// Move is set for MoveCommitted.
	Move      *board.Move
	Ambiguous bool

	// Position is the current validated position after this frame.
	Position board.Position

	Terminal bool
	Outcome  board.Outcome
}

// String renders a one-line summary
func (r Result) String() string {
	s := fmt.Sprintf("frame %d @%s: %s", r.FrameIndex, r.Timestamp.Truncate(time.Millisecond), r.Kind)
	switch {
	case r.Move != nil:
		s += " " + r.Move.SAN
	case r.Kind == PositionUpdated || r.Kind == DesyncWarning:
		s += " " + r.Position.FEN()
	}
	if r.Calibrating {
		s += " (calibrating)"
	}
	if r.Reason != nil && r.Kind != Skipped {
		s += ": " + r.Reason.Error()
	}
	if r.Terminal {
		s += " [" + r.Outcome.String() + "]"
	}
	return s
}

// Stats tracks session counters
type Stats struct {
	FramesProcessed  int64
	FramesSkipped    int64
	BoardMisses      int64
	MovesCommitted   int64
	Desyncs          int64
	Errors           int64
	LastProcessTime  time.Duration
	AverageFrameTime time.Duration
}
