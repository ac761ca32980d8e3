package cart

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DurableStore keeps the cart across restarts. Load reports ok=false when
// nothing was saved yet.
type DurableStore interface {
	Load(ctx context.Context) (c Cart, ok bool, err error)
	Save(ctx context.Context, c Cart) error
}

// Notice is what the user is told when a mutation is rejected.
type Notice struct {
	Op        Op
	Kind      FailureKind
	ProductID int64
	Message   string
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Publisher receives every committed snapshot.
type Publisher interface {
	Publish(ctx context.Context, c Cart) error
}

const (
	msgAddFailed    = "Erro na adição do produto"
	msgRemoveFailed = "Erro na remoção do produto"
	msgUpdateFailed = "Erro na alteração de quantidade do produto"
	msgOutOfStock   = "Quantidade solicitada fora de estoque"
)

// Message maps an operation and failure kind to the text shown to the user.
func Message(op Op, kind FailureKind) string {
	if kind == InsufficientStock {
		return msgOutOfStock
	}
	switch op {
	case OpRemove:
		return msgRemoveFailed
	case OpUpdate:
		return msgUpdateFailed
	default:
		return msgAddFailed
	}
}

// Store owns the live cart. Mutations are serialized so only one
// reconciliation runs at a time; reads never wait on them.
type Store struct {
	reconciler *Reconciler
	durable    DurableStore
	notifier   Notifier
	publisher  Publisher
	log        zerolog.Logger

	mu        sync.Mutex
	committed bool // guarded by mu
	current   atomic.Pointer[Cart]
	initOnce  sync.Once
}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

func NewStore(catalog CatalogService, durable DurableStore, notifier Notifier, opts ...Option) *Store {
	s := &Store{
		reconciler: NewReconciler(catalog),
		durable:    durable,
		notifier:   notifier,
		log:        log.With().Str("component", "cart").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	empty := Cart{}
	s.current.Store(&empty)
	return s
}

// Initialize hydrates the cart from the durable store. Only the first call
// does anything, and a cart that was already mutated is never replaced. On a
// load error the store keeps the empty cart and the error is returned for the
// caller to log.
func (s *Store) Initialize(ctx context.Context) error {
	var err error
	s.initOnce.Do(func() {
		if s.durable == nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		var (
			saved Cart
			ok    bool
		)
		saved, ok, err = s.durable.Load(ctx)
		if err != nil || !ok {
			return
		}
		if s.committed {
			s.log.Warn().Int("lines", len(saved)).Msg("cart changed before restore, saved copy ignored")
			return
		}
		saved = dedupe(saved)
		s.current.Store(&saved)
		s.log.Info().Int("lines", len(saved)).Msg("cart restored")
	})
	return err
}

// Cart returns a copy of the current snapshot.
func (s *Store) Cart() Cart {
	return s.current.Load().clone()
}

func (s *Store) AddProduct(ctx context.Context, productID int64) error {
	return s.mutate(ctx, OpAdd, productID, func(c Cart) (Cart, error) {
		return s.reconciler.AddOne(ctx, c, productID)
	})
}

func (s *Store) RemoveProduct(ctx context.Context, productID int64) error {
	return s.mutate(ctx, OpRemove, productID, func(c Cart) (Cart, error) {
		return s.reconciler.RemoveOne(c, productID)
	})
}

// UpdateProductAmount ignores non-positive amounts: nothing is fetched, saved or published.
func (s *Store) UpdateProductAmount(ctx context.Context, productID int64, amount int) error {
	if amount <= 0 {
		return nil
	}
	return s.mutate(ctx, OpUpdate, productID, func(c Cart) (Cart, error) {
		return s.reconciler.SetAmount(ctx, c, productID, amount)
	})
}

func (s *Store) mutate(ctx context.Context, op Op, productID int64, fn func(Cart) (Cart, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(*s.current.Load())
	if err != nil {
		s.reject(ctx, op, productID, err)
		return err
	}

	s.current.Store(&next)
	s.committed = true
	s.log.Debug().Str("op", string(op)).Int64("product", productID).Int("lines", len(next)).Msg("cart committed")

	// the snapshot is committed, so a cancelled caller must not skip the write
	ctx = context.WithoutCancel(ctx)
	if s.durable != nil {
		if err := s.durable.Save(ctx, next); err != nil {
			s.log.Error().Err(err).Str("op", string(op)).Msg("persist cart failed")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, next.clone()); err != nil {
			s.log.Warn().Err(err).Str("op", string(op)).Msg("publish cart failed")
		}
	}
	return nil
}

func (s *Store) reject(ctx context.Context, op Op, productID int64, err error) {
	kind := KindOf(err)
	s.log.Warn().Err(err).Str("op", string(op)).Int64("product", productID).Str("kind", kind.String()).Msg("cart mutation rejected")
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, Notice{
		Op:        op,
		Kind:      kind,
		ProductID: productID,
		Message:   Message(op, kind),
	})
}

// dedupe keeps the first line for every ID of a restored cart.
func dedupe(c Cart) Cart {
	seen := make(map[int64]struct{}, len(c))
	out := make(Cart, 0, len(c))
	for _, p := range c {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
