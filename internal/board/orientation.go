package board

import (
	"fmt"
	"strings"
)

// Orientation names the image edge that holds rank 1 in a top-down view
type Orientation uint8

const (
	UnknownOrientation Orientation = iota
	Rank1Bottom
	Rank1Top
	Rank1Left
	Rank1Right
)

// Orientations lists every concrete orientation
var Orientations = []Orientation{Rank1Bottom, Rank1Top, Rank1Left, Rank1Right}

// String returns "bottom", "top", "left", "right" or "unknown"
func (o Orientation) String() string {
	switch o {
	case Rank1Bottom:
		return "bottom"
	case Rank1Top:
		return "top"
	case Rank1Left:
		return "left"
	case Rank1Right:
		return "right"
	default:
		return "unknown"
	}
}

// ParseOrientation parses an orientation name. The empty string and "auto" yield UnknownOrientation.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return UnknownOrientation, nil
	case "bottom":
		return Rank1Bottom, nil
	case "top":
		return Rank1Top, nil
	case "left":
		return Rank1Left, nil
	case "right":
		return Rank1Right, nil
	}
	return UnknownOrientation, fmt.Errorf("invalid orientation %q (want bottom, top, left, right or auto)", s)
}

// SquareAt maps an image cell (row 0 at the top, column 0 at the left) to a square.
// White sits at the rank 1 edge, so the a-file is on White's left.
func (o Orientation) SquareAt(row, col int) Square {
	switch o {
	case Rank1Top:
		return NewSquare(7-col, row)
	case Rank1Left:
		return NewSquare(row, col)
	case Rank1Right:
		return NewSquare(7-row, 7-col)
	default:
		return NewSquare(col, 7-row)
	}
}

// Cell is the inverse of SquareAt
func (o Orientation) Cell(sq Square) (row, col int) {
	f, r := sq.File(), sq.Rank()
	switch o {
	case Rank1Top:
		return r, 7 - f
	case Rank1Left:
		return f, r
	case Rank1Right:
		return 7 - f, 7 - r
	default:
		return 7 - r, f
	}
}
