package rotation

import "github.com/faninteract/backend/internal/models"

// Single cycles one highlighted item through the pool. The index is reduced
// modulo the pool length current at each tick, so inserts and deletes between
// ticks shift which item comes next instead of being tracked.
type Single struct {
	index int
}

// Advance moves to the next item of a pool of length n.
func (s *Single) Advance(n int) {
	if n <= 0 {
		return
	}
	s.index = (s.index + 1) % n
}

// Index returns the selected position in a pool of length n, or -1 when empty.
func (s *Single) Index(n int) int {
	if n <= 0 {
		return -1
	}
	return s.index % n
}

// Current returns the highlighted item, or false when the placeholder should show.
func (s *Single) Current(pool []models.Item) (models.Item, bool) {
	i := s.Index(len(pool))
	if i < 0 {
		return models.Item{}, false
	}
	return pool[i], true
}

// Reset returns to the first item.
func (s *Single) Reset() { s.index = 0 }
