package notation

import (
	"fmt"
	"strings"

	"github.com/thyrook/boardscribe/internal/board"
)

// pgnLineWidth is the export line limit for movetext
const pgnLineWidth = 80

// MoveText renders the numbered SAN sequence, e.g. "1. e4 e5 2. Nf3".
// Resync points appear as {resync: FEN} comments.
func (g *Game) MoveText() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return strings.Join(g.tokens(), " ")
}

// PGN renders the full game: tag roster, SetUp/FEN for non-standard
// starts, wrapped movetext and the result.
func (g *Game) PGN() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := g.result()

	var sb strings.Builder
	tags := [][2]string{
		{"Event", g.headers.Event},
		{"Site", g.headers.Site},
		{"Date", g.headers.Date},
		{"Round", g.headers.Round},
		{"White", g.headers.White},
		{"Black", g.headers.Black},
		{"Result", string(result)},
	}
	if g.start.FEN() != board.StartingFEN {
		tags = append(tags, [2]string{"SetUp", "1"}, [2]string{"FEN", g.start.FEN()})
	}
	if g.complete && g.outcome.Terminal() {
		tags = append(tags, [2]string{"Termination", g.outcome.Termination.String()})
	}
	for _, tag := range tags {
		value := tag[1]
		if value == "" {
			value = "?"
		}
		fmt.Fprintf(&sb, "[%s \"%s\"]\n", tag[0], escapeTag(value))
	}
	sb.WriteString("\n")

	line := 0
	for i, tok := range append(g.tokens(), string(result)) {
		if i > 0 {
			if line+1+len(tok) > pgnLineWidth {
				sb.WriteString("\n")
				line = 0
			} else {
				sb.WriteString(" ")
				line++
			}
		}
		sb.WriteString(tok)
		line += len(tok)
	}
	sb.WriteString("\n")
	return sb.String()
}

func (g *Game) result() board.Result {
	if g.complete && g.outcome.Terminal() {
		return g.outcome.Result
	}
	return board.ResultOngoing
}

// tokens returns movetext tokens; callers hold the read lock
func (g *Game) tokens() []string {
	var toks []string
	needNumber := true
	ri := 0

	flush := func(ply int) {
		for ri < len(g.resyncs) && g.resyncs[ri].Ply == ply {
			toks = append(toks, fmt.Sprintf("{resync: %s}", g.resyncs[ri].FEN))
			needNumber = true
			ri++
		}
	}

	for i, e := range g.entries {
		flush(i)
		n := e.before.FullmoveNumber
		switch {
		case e.before.Turn == board.White:
			toks = append(toks, fmt.Sprintf("%d.", n))
		case needNumber:
			toks = append(toks, fmt.Sprintf("%d...", n))
		}
		toks = append(toks, e.move.SAN)
		needNumber = false
	}
	flush(len(g.entries))
	return toks
}

func escapeTag(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
