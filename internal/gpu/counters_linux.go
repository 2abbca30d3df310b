//go:build linux

package gpu

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var errNoCounterInstances = errors.New("no gpu exposes a busy counter")

// drmQuery serves the engine utilization counter from the DRM class in
// sysfs. Each card that exports gpu_busy_percent is one counter instance.
type drmQuery struct {
	root  string
	cards []string
	items []CounterItem
}

func openCounters(sysRoot string) (CounterQuery, error) {
	root := filepath.Join(sysRoot, "class", "drm")
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &drmQuery{root: root}, nil
}

func (q *drmQuery) AddEnglishCounter(path string) error { return q.add(path) }

func (q *drmQuery) AddCounter(path string) error { return q.add(path) }

func (q *drmQuery) add(path string) error {
	if path != EngineUtilizationCounter {
		return fmt.Errorf("unknown counter %q", path)
	}
	entries, err := os.ReadDir(q.root)
	if err != nil {
		return err
	}
	var cards []string
	for _, e := range entries {
		if !isCardDevice(e.Name()) {
			continue
		}
		if _, err := os.Stat(q.busyFile(e.Name())); err == nil {
			cards = append(cards, e.Name())
		}
	}
	if len(cards) == 0 {
		return errNoCounterInstances
	}
	q.cards = cards
	return nil
}

func (q *drmQuery) busyFile(card string) string {
	return filepath.Join(q.root, card, "device", "gpu_busy_percent")
}

func (q *drmQuery) Collect() error {
	if q.cards == nil {
		return errors.New("no counter added")
	}
	items := make([]CounterItem, 0, len(q.cards))
	for _, card := range q.cards {
		item := CounterItem{Name: card}
		if b, err := os.ReadFile(q.busyFile(card)); err == nil {
			if v, perr := strconv.ParseFloat(strings.TrimSpace(string(b)), 64); perr == nil {
				item.Value = v
				item.Valid = true
			}
		}
		items = append(items, item)
	}
	q.items = items
	return nil
}

func (q *drmQuery) Items() ([]CounterItem, error) {
	out := make([]CounterItem, len(q.items))
	copy(out, q.items)
	return out, nil
}

func (q *drmQuery) Close() error {
	q.cards = nil
	q.items = nil
	return nil
}

// isCardDevice matches card0, card1, ... but not connectors (card0-DP-1)
// or render nodes.
func isCardDevice(name string) bool {
	suffix, ok := strings.CutPrefix(name, "card")
	if !ok || suffix == "" {
		return false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
