// Package iface renders pipeline output for the terminal.
package iface

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/model"
	"github.com/thyrook/boardscribe/internal/notation"
	"github.com/thyrook/boardscribe/internal/pipeline"
	"github.com/thyrook/boardscribe/internal/storage"
	"github.com/thyrook/boardscribe/internal/validator"
)

// Level selects the status prefix
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// CLI provides command-line output utilities
type CLI struct {
	out   io.Writer
	quiet bool
	color bool
}

// NewCLI creates a printer writing to out. Quiet mode prints only moves,
// warnings and errors, without color.
func NewCLI(out io.Writer, quiet bool) *CLI {
	if out == nil {
		out = os.Stdout
	}
	return &CLI{
		out:   out,
		quiet: quiet,
		color: !quiet && os.Getenv("NO_COLOR") == "",
	}
}

// SetColor overrides color detection
func (c *CLI) SetColor(on bool) { c.color = on }

// Quiet reports whether quiet mode is on
func (c *CLI) Quiet() bool { return c.quiet }

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Colorize applies color to text when color output is enabled
func (c *CLI) Colorize(text string, color string) string {
	if !c.color {
		return text
	}
	return color + text + ColorReset
}

// PrintModeHeader displays the command header
func (c *CLI) PrintModeHeader(mode, detail string) {
	if c.quiet {
		return
	}
	c.printf("\n%s\n%s\n", c.Colorize(strings.ToUpper(mode)+" MODE", ColorBold), strings.Repeat("━", 70))
	if detail != "" {
		c.printf("%s\n", detail)
	}
	c.printf("\n")
}

// PrintStatus prints a status message
func (c *CLI) PrintStatus(message string, level Level) {
	if c.quiet && level != LevelError && level != LevelWarning {
		return
	}

	var prefix, color string
	switch level {
	case LevelInfo:
		prefix, color = "ℹ", ColorBlue
	case LevelSuccess:
		prefix, color = "✓", ColorGreen
	case LevelWarning:
		prefix, color = "⚠", ColorYellow
	case LevelError:
		prefix, color = "✗", ColorRed
	default:
		prefix, color = "•", ColorReset
	}
	c.printf("%s\n", c.Colorize(prefix+" "+message, color))
}

// PrintResult prints one frame result. Unchanged, skipped and missing-board
// frames are only printed when verbose is set.
func (c *CLI) PrintResult(res pipeline.Result, verbose bool) {
	ts := res.Timestamp.Truncate(time.Millisecond)
	switch res.Kind {
	case pipeline.MoveCommitted:
		line := fmt.Sprintf("[%s] %s", ts, moveLabel(res))
		if res.Ambiguous {
			line += " (ambiguous)"
		}
		if res.Terminal {
			line += "  " + res.Outcome.String()
		}
		if c.quiet {
			c.printf("%s\n", line)
			return
		}
		c.printf("%s\n", c.Colorize(line, ColorGreen))
	case pipeline.DesyncWarning:
		if res.Decision == validator.Desync {
			c.PrintStatus(fmt.Sprintf("[%s] lost track of the game (%v), still at %s", ts, res.Reason, res.Position.FEN()), LevelWarning)
			return
		}
		c.PrintStatus(fmt.Sprintf("[%s] lost track of the game, resynced to %s", ts, res.Position.FEN()), LevelWarning)
	case pipeline.PositionUpdated:
		if c.quiet {
			return
		}
		c.printf("%s\n", c.Colorize(fmt.Sprintf("[%s] position %s", ts, res.Position.FEN()), ColorCyan))
	default:
		if verbose && !c.quiet {
			c.printf("%s\n", c.Colorize(res.String(), ColorDim))
		}
	}
}

func moveLabel(res pipeline.Result) string {
	// Position is after the move; black moving bumps the fullmove number.
	num := res.Position.FullmoveNumber
	if res.Position.Turn == board.Black {
		return fmt.Sprintf("%d. %s", num, res.Move.SAN)
	}
	return fmt.Sprintf("%d... %s", num-1, res.Move.SAN)
}

// PrintBoard prints the placement as a diagram
func (c *CLI) PrintBoard(pl board.Placement) {
	if c.quiet {
		return
	}
	c.printf("%s\n", pl.Diagram())
}

// PrintGameSummary prints the final state of an analyzed game
func (c *CLI) PrintGameSummary(g *notation.Game, stats pipeline.Stats) {
	if c.quiet {
		c.printf("%s\n", g.FEN())
		return
	}
	lines := []string{
		"Moves:       " + fmt.Sprint(g.Len()),
		"Resyncs:     " + fmt.Sprint(len(g.Discontinuities())),
		"Frames:      " + fmt.Sprint(stats.FramesProcessed),
		"Skipped:     " + fmt.Sprint(stats.FramesSkipped),
		"Board miss:  " + fmt.Sprint(stats.BoardMisses),
		"Avg frame:   " + stats.AverageFrameTime.Truncate(time.Microsecond).String(),
	}
	if g.Complete() {
		lines = append(lines, "Outcome:     "+g.Outcome().String())
	}
	lines = append(lines, "FEN:         "+g.FEN())
	c.PrintBox("GAME SUMMARY", lines)
	c.PrintBoard(g.Position().Placement)
}

// PrintGames lists archived games
func (c *CLI) PrintGames(recs []storage.GameRecord) {
	if len(recs) == 0 {
		c.PrintStatus("No archived games", LevelInfo)
		return
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Result,
			fmt.Sprint(r.Plies),
			r.Source,
		})
	}
	c.PrintTable([]string{"ID", "CREATED", "RESULT", "PLIES", "SOURCE"}, rows)
}

// PrintGame prints one archived game in full
func (c *CLI) PrintGame(rec storage.GameRecord) {
	if c.quiet {
		c.printf("%s", rec.PGN)
		return
	}
	lines := []string{
		"ID:          " + rec.ID,
		"Created:     " + rec.CreatedAt.Local().Format(time.RFC3339),
		"Source:      " + rec.Source,
		"Result:      " + rec.Result,
		"Plies:       " + fmt.Sprint(rec.Plies),
		"Resyncs:     " + fmt.Sprint(rec.Resyncs),
	}
	if rec.Termination != "" {
		lines = append(lines, "Termination: "+rec.Termination)
	}
	lines = append(lines, "FEN:         "+rec.FEN)
	c.PrintBox("GAME "+shortID(rec.ID), lines)
	c.printf("\n%s", rec.PGN)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// PrintTrainingStats prints one epoch of training
func (c *CLI) PrintTrainingStats(s model.EpochStats, totalEpochs int) {
	if c.quiet {
		c.printf("Epoch %d/%d: loss=%.4f, accuracy=%.2f%%, lr=%.5f, time=%s\n",
			s.Epoch, totalEpochs, s.Loss, s.Accuracy*100, s.LearningRate, s.Duration.Truncate(time.Millisecond))
		return
	}
	c.printf("Epoch %3d/%d  loss %s  accuracy %6.2f%%  lr %.5f  %s\n",
		s.Epoch, totalEpochs,
		c.Colorize(fmt.Sprintf("%.4f", s.Loss), ColorCyan),
		s.Accuracy*100, s.LearningRate, s.Duration.Truncate(time.Millisecond))
}

// PrintProgressBar displays a progress bar on a single rewritten line
func (c *CLI) PrintProgressBar(current, total int, label string) {
	if c.quiet || total <= 0 {
		return
	}
	current = min(max(current, 0), total)

	const width = 40
	percentage := float64(current) / float64(total)
	filled := int(percentage * width)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	c.printf("\r%s [%s] %d/%d (%.1f%%) ", label, bar, current, total, percentage*100)
	if current == total {
		c.printf("\n")
	}
}

// PrintTable prints data in a formatted table
func (c *CLI) PrintTable(headers []string, rows [][]string) {
	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) && len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&sb, "%-*s  ", colWidths[i], h)
	}
	c.printf("%s\n", c.Colorize(strings.TrimRight(sb.String(), " "), ColorBold))

	for _, w := range colWidths {
		c.printf("%s", strings.Repeat("─", w+2))
	}
	c.printf("\n")

	for _, row := range rows {
		sb.Reset()
		for i, cell := range row {
			if i < len(colWidths) {
				fmt.Fprintf(&sb, "%-*s  ", colWidths[i], cell)
			}
		}
		c.printf("%s\n", strings.TrimRight(sb.String(), " "))
	}
}

// PrintBox prints text in a box
func (c *CLI) PrintBox(title string, lines []string) {
	maxWidth := len([]rune(title))
	for _, line := range lines {
		maxWidth = max(maxWidth, len([]rune(line)))
	}
	width := maxWidth + 4

	c.printf("┌%s┐\n", strings.Repeat("─", width))
	padding := (width - len([]rune(title))) / 2
	c.printf("│%s%s%s│\n",
		strings.Repeat(" ", padding),
		c.Colorize(title, ColorBold),
		strings.Repeat(" ", width-padding-len([]rune(title))))
	c.printf("├%s┤\n", strings.Repeat("─", width))
	for _, line := range lines {
		c.printf("│ %s%s │\n", line, strings.Repeat(" ", width-2-len([]rune(line))))
	}
	c.printf("└%s┘\n", strings.Repeat("─", width))
}
