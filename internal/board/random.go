package board

import "math/rand"

// FillRandom fills every cell with one of `categories` consecutive categories.
// The window of categories starts at a random offset so consecutive games
// use different piece sets.
func (b *Board) FillRandom(rng *rand.Rand, categories int) {
	categories = max(1, min(categories, MaxCategories))
	base := rng.Intn(MaxCategories)
	for i := range b.cells {
		b.cells[i] = (rng.Intn(categories)+base)%MaxCategories + 1
	}
}

// Random returns a new w x h board filled by FillRandom.
func Random(rng *rand.Rand, w, h, categories int) *Board {
	b := New(w, h)
	b.FillRandom(rng, categories)
	return b
}
