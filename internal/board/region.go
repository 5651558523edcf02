package board

// ConnectedRegion returns every cell 4-connected to (x, y) with the same category.
// The starting cell is always the first element. Returns nil for out-of-bounds
// or empty cells.
func (b *Board) ConnectedRegion(x, y int) []Pos {
	if !b.InBounds(x, y) {
		return nil
	}
	target := b.Get(x, y)
	if target == Empty {
		return nil
	}

	region := make([]Pos, 0, 12)
	visited := make(map[Pos]struct{})
	b.collect(x, y, target, &region, visited)
	return region
}

// collect walks left, right, down, up in that order.
func (b *Board) collect(x, y, target int, region *[]Pos, visited map[Pos]struct{}) {
	if !b.InBounds(x, y) || b.cells[b.index(x, y)] != target {
		return
	}
	p := P(x, y)
	if _, seen := visited[p]; seen {
		return
	}
	visited[p] = struct{}{}
	*region = append(*region, p)

	b.collect(x-1, y, target, region, visited)
	b.collect(x+1, y, target, region, visited)
	b.collect(x, y-1, target, region, visited)
	b.collect(x, y+1, target, region, visited)
}

// FindAnyEliminable returns a cell whose region is large enough to eliminate.
// Columns are scanned left to right and each column from the top row down.
// Cells already known to belong to an undersized region are skipped.
func (b *Board) FindAnyEliminable() (Pos, bool) {
	tooSmall := make(map[Pos]struct{})
	for x := range b.W {
		for y := b.H - 1; y >= 0; y-- {
			if b.cells[b.index(x, y)] == Empty {
				continue
			}
			if _, skip := tooSmall[P(x, y)]; skip {
				continue
			}
			region := b.ConnectedRegion(x, y)
			if len(region) >= MinRegion {
				return region[0], true
			}
			for _, p := range region {
				tooSmall[p] = struct{}{}
			}
		}
	}
	return P(-1, -1), false
}
