package board

import (
	"fmt"
	"strconv"
	"strings"
)

// Serialize encodes the board row by row, bottom row first, as two lowercase
// hex digits per cell. This is the Pieces field of the GameStart command.
func (b *Board) Serialize() string {
	var sb strings.Builder
	sb.Grow(len(b.cells) * 2)
	for y := range b.H {
		for x := range b.W {
			fmt.Fprintf(&sb, "%02x", b.cells[b.index(x, y)])
		}
	}
	return sb.String()
}

// Parse decodes a board produced by Serialize. Any two-digit hex value is accepted,
// upper or lower case. Extra trailing characters are ignored.
func Parse(s string, w, h int) (*Board, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("board: invalid size %dx%d", w, h)
	}
	if len(s) < w*h*2 {
		return nil, fmt.Errorf("board: pieces string too short: %d chars for %dx%d", len(s), w, h)
	}
	b := New(w, h)
	i := 0
	for y := range h {
		for x := range w {
			v, err := strconv.ParseUint(s[i:i+2], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("board: bad cell %s: %w", P(x, y), err)
			}
			b.cells[b.index(x, y)] = int(v)
			i += 2
		}
	}
	return b, nil
}
