package sampling

import (
	"math/rand"

	"github.com/starford/jera/internal/models"
)

// Sample selects up to n distinct notes by weighted random choice without
// replacement: each pick recomputes the remaining total and walks the
// cumulative weights. When n covers the whole candidate list the list is
// returned as-is, unweighted.
func Sample(rng *rand.Rand, notes []models.Note, n int, weight func(models.Note) float64) []models.Note {
	if n <= 0 {
		return nil
	}
	if n >= len(notes) {
		return append([]models.Note(nil), notes...)
	}

	weights := make([]float64, len(notes))
	for i, note := range notes {
		if w := weight(note); w > 0 {
			weights[i] = w
		}
	}

	selected := make([]models.Note, 0, n)
	used := make([]bool, len(notes))

	for range n {
		var total float64
		for i, w := range weights {
			if !used[i] {
				total += w
			}
		}

		if total == 0 {
			// All remaining weights vanished; fall back to a uniform pick.
			idx := nthUnused(used, rng.Intn(len(notes)-len(selected)))
			selected = append(selected, notes[idx])
			used[idx] = true
			continue
		}

		r := rng.Float64() * total
		var cumulative float64
		for i, w := range weights {
			if used[i] {
				continue
			}
			cumulative += w
			if cumulative >= r {
				selected = append(selected, notes[i])
				used[i] = true
				break
			}
		}
	}

	return selected
}

func nthUnused(used []bool, n int) int {
	for i, u := range used {
		if u {
			continue
		}
		if n == 0 {
			return i
		}
		n--
	}
	return len(used) - 1
}
