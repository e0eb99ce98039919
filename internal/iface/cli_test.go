package iface

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/model"
	"github.com/thyrook/boardscribe/internal/notation"
	"github.com/thyrook/boardscribe/internal/pipeline"
	"github.com/thyrook/boardscribe/internal/rules"
	"github.com/thyrook/boardscribe/internal/storage"
	"github.com/thyrook/boardscribe/internal/validator"
)

func newTestCLI(quiet bool) (*CLI, *bytes.Buffer) {
	var buf bytes.Buffer
	c := NewCLI(&buf, quiet)
	c.SetColor(false)
	return c, &buf
}

func TestColorize(t *testing.T) {
	c, _ := newTestCLI(false)
	if got := c.Colorize("x", ColorRed); got != "x" {
		t.Errorf("Colorize without color = %q", got)
	}
	c.SetColor(true)
	if got := c.Colorize("x", ColorRed); got != ColorRed+"x"+ColorReset {
		t.Errorf("Colorize with color = %q", got)
	}
}

func TestPrintStatus(t *testing.T) {
	tests := []struct {
		name  string
		quiet bool
		level Level
		want  string
	}{
		{"info", false, LevelInfo, "ℹ hello\n"},
		{"success", false, LevelSuccess, "✓ hello\n"},
		{"warning", false, LevelWarning, "⚠ hello\n"},
		{"error", false, LevelError, "✗ hello\n"},
		{"quiet info", true, LevelInfo, ""},
		{"quiet warning", true, LevelWarning, "⚠ hello\n"},
		{"quiet error", true, LevelError, "✗ hello\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, buf := newTestCLI(tt.quiet)
			c.PrintStatus("hello", tt.level)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func playedResult(t *testing.T, uci ...string) pipeline.Result {
	t.Helper()
	engine := rules.NewEngine()
	pos := board.StartingPosition()
	var last board.Move
	for _, u := range uci {
		from, _ := board.ParseSquare(u[:2])
		to, _ := board.ParseSquare(u[2:4])
		succ, err := engine.Successors(pos)
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, s := range succ {
			if s.Move.From == from && s.Move.To == to {
				last, pos, found = s.Move, s.Position, true
				break
			}
		}
		if !found {
			t.Fatalf("%s not legal", u)
		}
	}
	return pipeline.Result{
		Kind:      pipeline.MoveCommitted,
		Timestamp: 1500 * time.Millisecond,
		Move:      &last,
		Position:  pos,
	}
}

func TestPrintResultMoves(t *testing.T) {
	tests := []struct {
		name string
		uci  []string
		want string
	}{
		{"white first move", []string{"e2e4"}, "[1.5s] 1. e4\n"},
		{"black reply", []string{"e2e4", "e7e5"}, "[1.5s] 1... e5\n"},
		{"second white move", []string{"e2e4", "e7e5", "g1f3"}, "[1.5s] 2. Nf3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, buf := newTestCLI(true)
			c.PrintResult(playedResult(t, tt.uci...), false)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrintResultFiltering(t *testing.T) {
	unchanged := pipeline.Result{Kind: pipeline.PositionUnchanged, FrameIndex: 3, Position: board.StartingPosition()}
	missing := pipeline.Result{Kind: pipeline.BoardNotFound, Reason: errors.New("no board")}

	c, buf := newTestCLI(false)
	c.PrintResult(unchanged, false)
	c.PrintResult(missing, false)
	if buf.Len() != 0 {
		t.Errorf("non-verbose output = %q", buf.String())
	}

	c.PrintResult(missing, true)
	if !strings.Contains(buf.String(), "board_not_found") {
		t.Errorf("verbose output = %q", buf.String())
	}

	c, buf = newTestCLI(true)
	c.PrintResult(pipeline.Result{Kind: pipeline.PositionUpdated, Position: board.StartingPosition()}, true)
	if buf.Len() != 0 {
		t.Errorf("quiet mode printed position update: %q", buf.String())
	}
	c.PrintResult(pipeline.Result{Kind: pipeline.DesyncWarning, Position: board.StartingPosition()}, false)
	if !strings.Contains(buf.String(), board.StartingFEN) {
		t.Errorf("desync warning missing FEN: %q", buf.String())
	}

	c, buf = newTestCLI(true)
	c.PrintResult(pipeline.Result{
		Kind:     pipeline.DesyncWarning,
		Decision: validator.Desync,
		Reason:   validator.ErrIllegalPosition,
		Position: board.StartingPosition(),
	}, false)
	if out := buf.String(); strings.Contains(out, "resynced") || !strings.Contains(out, "still at "+board.StartingFEN) {
		t.Errorf("unresolved desync output = %q", out)
	}
}

func TestPrintTable(t *testing.T) {
	c, buf := newTestCLI(false)
	c.PrintTable([]string{"ID", "RESULT"}, [][]string{{"abc", "1-0"}, {"d", "*"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if lines[0] != "ID   RESULT" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "abc  1-0" || lines[3] != "d    *" {
		t.Errorf("rows = %q, %q", lines[2], lines[3])
	}
}

func TestPrintBoxAlignment(t *testing.T) {
	c, buf := newTestCLI(false)
	c.PrintBox("T", []string{"short", "a longer line"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	width := len([]rune(lines[0]))
	for _, l := range lines {
		if n := len([]rune(l)); n != width {
			t.Errorf("line %q has width %d, want %d", l, n, width)
		}
	}
}

func TestPrintGames(t *testing.T) {
	c, buf := newTestCLI(false)
	c.PrintGames(nil)
	if !strings.Contains(buf.String(), "No archived games") {
		t.Errorf("empty listing = %q", buf.String())
	}

	buf.Reset()
	c.PrintGames([]storage.GameRecord{
		{ID: "g-1", CreatedAt: time.Now(), Result: "0-1", Plies: 4, Source: "fools.mp4"},
	})
	out := buf.String()
	for _, want := range []string{"ID", "g-1", "0-1", "fools.mp4"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q: %q", want, out)
		}
	}
}

func TestPrintGameQuietIsPGN(t *testing.T) {
	c, buf := newTestCLI(true)
	rec := storage.GameRecord{ID: "x", PGN: "[Event \"?\"]\n\n*\n"}
	c.PrintGame(rec)
	if buf.String() != rec.PGN {
		t.Errorf("quiet PrintGame = %q", buf.String())
	}
}

func TestPrintGameSummary(t *testing.T) {
	g := notation.NewGame(rules.NewEngine(), notation.DefaultHeaders())
	if err := g.Begin(board.StartingPosition()); err != nil {
		t.Fatal(err)
	}

	c, buf := newTestCLI(true)
	c.PrintGameSummary(g, pipeline.Stats{})
	if strings.TrimSpace(buf.String()) != board.StartingFEN {
		t.Errorf("quiet summary = %q", buf.String())
	}

	c, buf = newTestCLI(false)
	c.PrintGameSummary(g, pipeline.Stats{FramesProcessed: 12})
	if !strings.Contains(buf.String(), "GAME SUMMARY") || !strings.Contains(buf.String(), "a b c d e f g h") {
		t.Errorf("summary = %q", buf.String())
	}
}

func TestPrintTrainingStatsQuiet(t *testing.T) {
	c, buf := newTestCLI(true)
	c.PrintTrainingStats(model.EpochStats{Epoch: 2, Loss: 0.5, Accuracy: 0.75, LearningRate: 0.01, Duration: time.Second}, 10)
	want := "Epoch 2/10: loss=0.5000, accuracy=75.00%, lr=0.01000, time=1s\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestPrintProgressBar(t *testing.T) {
	c, buf := newTestCLI(false)
	c.PrintProgressBar(5, 10, "frames")
	if !strings.Contains(buf.String(), "5/10 (50.0%)") {
		t.Errorf("progress = %q", buf.String())
	}
	if strings.HasSuffix(buf.String(), "\n") {
		t.Error("unfinished progress should not end the line")
	}
	c.PrintProgressBar(10, 10, "frames")
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("finished progress should end the line")
	}

	buf.Reset()
	c.PrintProgressBar(1, 0, "none")
	if buf.Len() != 0 {
		t.Error("zero total should print nothing")
	}
}
