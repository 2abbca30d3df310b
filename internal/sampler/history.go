package sampler

import "github.com/samber/lo"

// HistorySize is the number of raw CPU samples averaged into the target.
const HistorySize = 10

// History is a fixed ring of the most recent raw CPU percentages. Slots
// start at zero, so the mean under-reports until the ring has filled once.
type History struct {
	buf  [HistorySize]float64
	next int
}

// Push overwrites the oldest slot with v.
func (h *History) Push(v float64) {
	h.buf[h.next] = v
	h.next = (h.next + 1) % HistorySize
}

// Mean is the arithmetic mean over all HistorySize slots.
func (h *History) Mean() float64 {
	return lo.Sum(h.buf[:]) / HistorySize
}

// Values returns the slots in storage order.
func (h *History) Values() []float64 {
	out := make([]float64, HistorySize)
	copy(out, h.buf[:])
	return out
}

// Cursor is the index the next Push writes to.
func (h *History) Cursor() int { return h.next }
