package data

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notnil/chess"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/notation"
)

var ErrEmptyPGN = errors.New("no games found")

// Script is a recorded game replayed as a sequence of positions
type Script struct {
	Headers notation.Headers
	Result  board.Result

	// Positions holds the start position followed by the position after each move
	Positions []board.Position
	Moves     []board.Move
}

// Start returns the initial position
func (s Script) Start() board.Position {
	return s.Positions[0]
}

// Final returns the position after the last move
func (s Script) Final() board.Position {
	return s.Positions[len(s.Positions)-1]
}

// Placements returns the piece placement of every position
func (s Script) Placements() []board.Placement {
	out := make([]board.Placement, len(s.Positions))
	for i, p := range s.Positions {
		out[i] = p.Placement
	}
	return out
}

// LoadPGN parses every game in the file at path
func LoadPGN(path string) ([]Script, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PGN file: %w", err)
	}
	defer file.Close()

	return ParsePGN(file)
}

// ParsePGN parses every game in r
func ParsePGN(r io.Reader) ([]Script, error) {
	var scripts []Script

	scanner := chess.NewScanner(r)
	for scanner.Scan() {
		game := scanner.Next()
		if game == nil {
			continue
		}
		s, err := FromGame(game)
		if err != nil {
			return nil, fmt.Errorf("game %d: %w", len(scripts)+1, err)
		}
		scripts = append(scripts, s)
	}

	// EOF is expected at end of file, not an error
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing PGN: %w", err)
	}
	if len(scripts) == 0 {
		return nil, ErrEmptyPGN
	}
	return scripts, nil
}

// FromGame converts a parsed game into a Script
func FromGame(game *chess.Game) (Script, error) {
	if game == nil {
		return Script{}, fmt.Errorf("game is nil")
	}

	s := Script{
		Headers: headersOf(game),
		Result:  board.Result(game.Outcome()),
	}
	if s.Result == "" {
		s.Result = board.ResultOngoing
	}

	for i, p := range game.Positions() {
		pos, err := board.ParseFEN(p.String())
		if err != nil {
			return Script{}, fmt.Errorf("position %d: %w", i, err)
		}
		s.Positions = append(s.Positions, pos)
	}
	if len(s.Positions) == 0 {
		return Script{}, fmt.Errorf("initial position is nil")
	}

	for i, m := range game.Moves() {
		move, err := convertMove(m)
		if err != nil {
			return Script{}, fmt.Errorf("move %d: %w", i+1, err)
		}
		s.Moves = append(s.Moves, move)
	}
	if len(s.Positions) != len(s.Moves)+1 {
		return Script{}, fmt.Errorf("replay produced %d positions for %d moves", len(s.Positions), len(s.Moves))
	}
	return s, nil
}

func headersOf(game *chess.Game) notation.Headers {
	h := notation.DefaultHeaders()
	tag := func(key string, dst *string) {
		if tp := game.GetTagPair(key); tp != nil && tp.Value != "" {
			*dst = tp.Value
		}
	}
	tag("Event", &h.Event)
	tag("Site", &h.Site)
	tag("Date", &h.Date)
	tag("Round", &h.Round)
	tag("White", &h.White)
	tag("Black", &h.Black)
	return h
}

func convertMove(m *chess.Move) (board.Move, error) {
	from, err := board.ParseSquare(m.S1().String())
	if err != nil {
		return board.Move{}, err
	}
	to, err := board.ParseSquare(m.S2().String())
	if err != nil {
		return board.Move{}, err
	}
	move := board.Move{From: from, To: to}
	switch m.Promo() {
	case chess.Queen:
		move.Promotion = board.Queen
	case chess.Rook:
		move.Promotion = board.Rook
	case chess.Bishop:
		move.Promotion = board.Bishop
	case chess.Knight:
		move.Promotion = board.Knight
	}
	return move, nil
}

// ValidatePGN checks if a PGN file looks valid without fully parsing it
func ValidatePGN(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content := make([]byte, 1024)
	n, err := file.Read(content)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// Check for basic PGN markers
	head := string(content[:n])
	if !strings.Contains(head, "[Event") && !strings.Contains(head, "1.") {
		return fmt.Errorf("file does not appear to be a valid PGN file")
	}
	return nil
}
