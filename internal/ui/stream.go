package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// PassCounter is a Sampler that reports how many measurement passes it ran.
type PassCounter interface {
	Sampler
	Passes() uint64
}

// Stream drives src at the given frame period and writes one JSON snapshot
// per line to w after every measurement pass, until ctx is done.
func Stream(ctx context.Context, src PassCounter, frame time.Duration, w io.Writer) error {
	enc := json.NewEncoder(w)
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	last := time.Now()
	seen := src.Passes()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			src.Update(now.Sub(last))
			last = now
			if p := src.Passes(); p != seen {
				seen = p
				if err := enc.Encode(src.Snapshot()); err != nil {
					return fmt.Errorf("stream: %w", err)
				}
			}
		}
	}
}
