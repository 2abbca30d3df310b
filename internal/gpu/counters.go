package gpu

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// EngineUtilizationCounter is the wildcard counter covering every GPU
// engine instance.
const EngineUtilizationCounter = `\GPU Engine(*)\Utilization Percentage`

// CounterItem is one instance of a formatted wildcard counter. Items whose
// Valid flag is false carry a stale or failed sample.
type CounterItem struct {
	Name  string
	Value float64
	Valid bool
}

// CounterQuery is an open performance-counter query. AddEnglishCounter
// resolves the path independently of the system locale; AddCounter uses
// the localized name.
type CounterQuery interface {
	AddEnglishCounter(path string) error
	AddCounter(path string) error
	Collect() error
	Items() ([]CounterItem, error)
	Close() error
}

func probeCounters(open func() (CounterQuery, error)) (_ *CounterBinding, err error) {
	if open == nil {
		return nil, ErrDisabled
	}
	q, err := open()
	if err != nil {
		return nil, fmt.Errorf("counters: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, q.Close())
		}
	}()

	if englishErr := q.AddEnglishCounter(EngineUtilizationCounter); englishErr != nil {
		if err = q.AddCounter(EngineUtilizationCounter); err != nil {
			return nil, fmt.Errorf("counters: add %s: %w", EngineUtilizationCounter, errors.Join(englishErr, err))
		}
	}
	// Rate counters need two collections before they format; the first one
	// happens here so the first measurement already has a baseline.
	_ = q.Collect()
	return &CounterBinding{query: q}, nil
}

func (b *CounterBinding) measure(r *Reading) {
	if err := b.query.Collect(); err != nil {
		return
	}
	items, err := b.query.Items()
	if err != nil {
		return
	}
	if load, ok := maxValid(items); ok {
		r.Load = load
	}
}

// maxValid returns the largest value among valid items. An empty array
// means no engine is busy and yields 0; an array where every item is
// invalid yields ok == false so the caller keeps its previous value.
func maxValid(items []CounterItem) (float64, bool) {
	if len(items) == 0 {
		return 0, true
	}
	values := lo.FilterMap(items, func(it CounterItem, _ int) (float64, bool) {
		return it.Value, it.Valid
	})
	if len(values) == 0 {
		return 0, false
	}
	return lo.Max(values), true
}
