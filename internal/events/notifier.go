package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ahinestrog/rocketshoes/internal/cart"
)

// LogNotifier writes every rejection to the logger.
type LogNotifier struct {
	Log zerolog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n cart.Notice) {
	l.Log.Warn().
		Str("op", string(n.Op)).
		Str("kind", n.Kind.String()).
		Int64("product", n.ProductID).
		Msg(n.Message)
}

// Flash keeps user-facing messages until the next Drain, like a toast queue.
type Flash struct {
	mu   sync.Mutex
	msgs []string
}

func (f *Flash) Notify(_ context.Context, n cart.Notice) {
	f.mu.Lock()
	f.msgs = append(f.msgs, n.Message)
	f.mu.Unlock()
}

// Drain returns the pending messages in arrival order and clears them.
func (f *Flash) Drain() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.msgs
	f.msgs = nil
	return out
}

// Multi fans a notice out to every non-nil notifier.
type Multi []cart.Notifier

func (m Multi) Notify(ctx context.Context, n cart.Notice) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(ctx, n)
		}
	}
}
