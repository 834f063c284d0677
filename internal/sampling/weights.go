package sampling

import (
	"math"

	"github.com/starford/jera/internal/models"
)

// biasFloor keeps heavily mined notes discouraged but never unreachable.
const biasFloor = 0.1

// HistorySource supplies cumulative card counts for density bias.
type HistorySource interface {
	CumulativeCards(path string) int
}

// Weigher computes per-note sampling weights: tag preference multiplied by
// a density penalty derived from prior processing history.
type Weigher struct {
	schema   *Schema
	history  HistorySource
	strength float64
}

// NewWeigher builds a weigher. strength is clamped to [0, 1]; 0 disables
// the density penalty entirely.
func NewWeigher(schema *Schema, history HistorySource, strength float64) *Weigher {
	if schema == nil {
		schema = DefaultSchema()
	}
	return &Weigher{
		schema:   schema,
		history:  history,
		strength: math.Min(math.Max(strength, 0), 1),
	}
}

// SamplingWeight returns tagWeight(note) * densityBias(note).
func (w *Weigher) SamplingWeight(n models.Note) float64 {
	return w.schema.TagWeight(n.Tags) * w.DensityBias(n)
}

// DensityBias penalizes notes in proportion to cards already extracted per
// character: max(0.1, 1 - density*1000*strength). Notes without history are
// neutral at 1.0.
func (w *Weigher) DensityBias(n models.Note) float64 {
	if w.history == nil {
		return 1.0
	}
	cards := w.history.CumulativeCards(n.Path)
	if cards == 0 {
		return 1.0
	}
	density := float64(cards) / math.Max(float64(n.Size), 1)
	return math.Max(biasFloor, 1.0-density*1000*w.strength)
}
