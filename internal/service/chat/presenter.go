package chat

import (
	"context"
	"iter"
	"time"

	"github.com/zhouzirui/beacon/internal/model/chat"
)

// Presenter simulates incremental delivery of an already complete reply.
type Presenter struct {
	delay time.Duration
}

// NewPresenter returns a Presenter that waits delay before each frame.
// A zero delay emits frames back to back.
func NewPresenter(delay time.Duration) *Presenter {
	if delay < 0 {
		delay = 0
	}
	return &Presenter{delay: delay}
}

// Stream yields one transcript per rune of fullText; the k-th frame holds the
// first k runes in the handle's turn. Empty text yields a single frame with
// empty content. The sequence ends early when ctx is done, the consumer
// stops, or the handle goes stale.
func (p *Presenter) Stream(ctx context.Context, fullText string, h *TurnHandle) iter.Seq[[]chat.Turn] {
	return func(yield func([]chat.Turn) bool) {
		runes := []rune(fullText)
		if len(runes) == 0 {
			if turns, ok := h.Set(""); ok {
				yield(turns)
			}
			return
		}

		var timer *time.Timer
		if p.delay > 0 {
			timer = time.NewTimer(p.delay)
			defer timer.Stop()
		}

		for k := 1; k <= len(runes); k++ {
			if timer != nil {
				if k > 1 {
					timer.Reset(p.delay)
				}
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
				}
			} else if ctx.Err() != nil {
				return
			}

			turns, ok := h.Set(string(runes[:k]))
			if !ok {
				return
			}
			if !yield(turns) {
				return
			}
		}
	}
}
