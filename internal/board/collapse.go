package board

// RemoveAndCollapse clears the given cells and lets the pieces above them fall.
// Only columns that had a cell cleared are compacted; every other column is
// left as it was, even one lying between two touched columns. Out-of-bounds
// positions are ignored. Each piece that changes row is reported as a Move,
// columns in ascending order. An empty selection is a no-op and returns nil.
func (b *Board) RemoveAndCollapse(positions []Pos) []Move {
	if len(positions) == 0 {
		return nil
	}

	touched := make([]bool, b.W)
	for _, p := range positions {
		if !b.InBounds(p.X, p.Y) {
			continue
		}
		b.cells[b.index(p.X, p.Y)] = Empty
		touched[p.X] = true
	}

	var moves []Move
	for x, ok := range touched {
		if ok {
			moves = b.compactColumn(x, moves)
		}
	}
	return moves
}

// compactColumn slides the pieces of column x down, preserving their order,
// and leaves the vacated cells at the top empty.
func (b *Board) compactColumn(x int, moves []Move) []Move {
	dst := 0
	for src := range b.H {
		v := b.cells[b.index(x, src)]
		if v == Empty {
			continue
		}
		if dst != src {
			b.cells[b.index(x, dst)] = v
			moves = append(moves, Move{From: P(x, src), To: P(x, dst)})
		}
		dst++
	}
	for ; dst < b.H; dst++ {
		b.cells[b.index(x, dst)] = Empty
	}
	return moves
}
