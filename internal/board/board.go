// Package board implements the tile-elimination engine shared by the server,
// the AI player and the headless client.
//
// A board is a W x H grid of piece categories. Category 0 marks an empty cell,
// categories 1..MaxCategories are pieces. Row y = 0 is the bottom of the board
// and gravity pulls pieces towards it.
package board

import "fmt"

const (
	// Empty marks a cell without a piece.
	Empty = 0

	// MaxCategories is the number of distinct piece categories clients can draw.
	MaxCategories = 10

	// MinRegion is the smallest connected region that can be eliminated.
	MinRegion = 3

	// maxCell is the largest value the two-digit hex encoding can carry.
	maxCell = 0xff
)

// Pos is a cell coordinate.
type Pos struct {
	X, Y int
}

// P is a shorthand constructor for Pos.
func P(x, y int) Pos {
	return Pos{X: x, Y: y}
}

func (p Pos) String() string {
	return fmt.Sprintf("[%d,%d]", p.X, p.Y)
}

// Move records a piece falling from one cell to another during a collapse.
// From and To always share the same column.
type Move struct {
	From Pos
	To   Pos
}

func (m Move) String() string {
	return fmt.Sprintf("(%s -> %s)", m.From, m.To)
}

// Board is the elimination grid.
// Cells are stored in row-major order: index = y*W + x.
type Board struct {
	W     int
	H     int
	cells []int
}

// New creates an empty board.
func New(w, h int) *Board {
	return &Board{
		W:     w,
		H:     h,
		cells: make([]int, w*h),
	}
}

// FromColumns builds a board from column data where cols[x][y] is the piece at (x, y).
// All columns must have the same length. The input is copied.
func FromColumns(cols [][]int) (*Board, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("board: no columns")
	}
	h := len(cols[0])
	b := New(len(cols), h)
	for x, col := range cols {
		if len(col) != h {
			return nil, fmt.Errorf("board: column %d has %d cells, want %d", x, len(col), h)
		}
		for y, v := range col {
			if v < Empty || v > maxCell {
				return nil, fmt.Errorf("board: invalid category %d at %s", v, P(x, y))
			}
			b.cells[b.index(x, y)] = v
		}
	}
	return b, nil
}

func (b *Board) index(x, y int) int {
	return y*b.W + x
}

// InBounds reports whether (x, y) lies on the board.
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.W && y >= 0 && y < b.H
}

// Get returns the category at (x, y), or Empty when out of bounds.
func (b *Board) Get(x, y int) int {
	if !b.InBounds(x, y) {
		return Empty
	}
	return b.cells[b.index(x, y)]
}

// Set stores a category at (x, y). Out-of-bounds writes are ignored.
func (b *Board) Set(x, y, category int) {
	if b.InBounds(x, y) {
		b.cells[b.index(x, y)] = category
	}
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	cells := make([]int, len(b.cells))
	copy(cells, b.cells)
	return &Board{W: b.W, H: b.H, cells: cells}
}

// Equal reports whether both boards have the same size and contents.
func (b *Board) Equal(other *Board) bool {
	if b == other {
		return true
	}
	if other == nil || b.W != other.W || b.H != other.H {
		return false
	}
	for i, v := range b.cells {
		if other.cells[i] != v {
			return false
		}
	}
	return true
}

// PieceCount returns the number of non-empty cells.
func (b *Board) PieceCount() int {
	n := 0
	for _, v := range b.cells {
		if v != Empty {
			n++
		}
	}
	return n
}
