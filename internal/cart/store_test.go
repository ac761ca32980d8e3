package cart

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDurable struct {
	mu      sync.Mutex
	saved   Cart
	has     bool
	loadErr error
	saveErr error
	saves   int
}

func (m *memDurable) Load(ctx context.Context) (Cart, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	return append(Cart{}, m.saved...), m.has, nil
}

func (m *memDurable) Save(ctx context.Context, c Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(Cart{}, c...)
	m.has = true
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notices[len(r.notices)-1]
}

type recordingPublisher struct {
	published []Cart
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, c Cart) error {
	p.published = append(p.published, c)
	return p.err
}

func newTestStore(catalog CatalogService, durable DurableStore, notifier Notifier, opts ...Option) *Store {
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return NewStore(catalog, durable, notifier, opts...)
}

func amounts(c Cart) map[int64]int {
	out := make(map[int64]int, len(c))
	for _, p := range c {
		out[p.ID] = p.Amount
	}
	return out
}

func TestStoreEndToEnd(t *testing.T) {
	ctx := context.Background()
	durable := &memDurable{}
	notifier := &recordingNotifier{}
	s := newTestStore(newFakeCatalog(map[int64]int{7: 2}), durable, notifier)
	require.NoError(t, s.Initialize(ctx))
	assert.Empty(t, s.Cart())

	require.NoError(t, s.AddProduct(ctx, 7))
	assert.Equal(t, map[int64]int{7: 1}, amounts(s.Cart()))

	require.NoError(t, s.AddProduct(ctx, 7))
	assert.Equal(t, map[int64]int{7: 2}, amounts(s.Cart()))

	err := s.AddProduct(ctx, 7)
	assert.Equal(t, InsufficientStock, KindOf(err))
	assert.Equal(t, map[int64]int{7: 2}, amounts(s.Cart()))
	assert.Equal(t, Notice{Op: OpAdd, Kind: InsufficientStock, ProductID: 7, Message: "Quantidade solicitada fora de estoque"}, notifier.last())

	require.NoError(t, s.UpdateProductAmount(ctx, 7, 1))
	assert.Equal(t, map[int64]int{7: 1}, amounts(s.Cart()))

	require.NoError(t, s.RemoveProduct(ctx, 7))
	assert.Empty(t, s.Cart())
	assert.Len(t, notifier.notices, 1)

	saved, ok, err := durable.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, saved)
	assert.Equal(t, 4, durable.saves)
}

func TestStoreFailuresLeaveSnapshotAndSkipPersistence(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(map[int64]int{1: 3, 2: 1})
	durable := &memDurable{}
	notifier := &recordingNotifier{}
	s := newTestStore(catalog, durable, notifier)

	require.NoError(t, s.AddProduct(ctx, 1))
	before := s.Cart()
	saves := durable.saves

	cases := []struct {
		name    string
		run     func() error
		kind    FailureKind
		message string
	}{
		{"remove absent", func() error { return s.RemoveProduct(ctx, 9) }, NotFound, "Erro na remoção do produto"},
		{"update absent", func() error { return s.UpdateProductAmount(ctx, 2, 1) }, NotFound, "Erro na alteração de quantidade do produto"},
		{"update over stock", func() error { return s.UpdateProductAmount(ctx, 1, 4) }, InsufficientStock, "Quantidade solicitada fora de estoque"},
		{"add unknown", func() error { return s.AddProduct(ctx, 404) }, FetchFailure, "Erro na adição do produto"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Equal(t, tc.message, notifier.last().Message)
			assert.Equal(t, before, s.Cart())
			assert.Equal(t, saves, durable.saves)
		})
	}

	t.Run("stock fetch error on update", func(t *testing.T) {
		catalog.stockErr = errors.New("offline")
		defer func() { catalog.stockErr = nil }()

		err := s.UpdateProductAmount(ctx, 1, 2)
		assert.Equal(t, FetchFailure, KindOf(err))
		assert.Equal(t, "Erro na alteração de quantidade do produto", notifier.last().Message)
	})
}

func TestStoreNoOpUpdate(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	durable := &memDurable{}
	pub := &recordingPublisher{}
	catalog := newFakeCatalog(map[int64]int{1: 3})
	s := newTestStore(catalog, durable, notifier, WithPublisher(pub))
	require.NoError(t, s.AddProduct(ctx, 1))
	before := s.Cart()
	stockCalls := catalog.stockCalls

	require.NoError(t, s.UpdateProductAmount(ctx, 1, 0))
	require.NoError(t, s.UpdateProductAmount(ctx, 1, -3))

	assert.Equal(t, before, s.Cart())
	assert.Empty(t, notifier.notices)
	assert.Equal(t, 1, durable.saves)
	assert.Len(t, pub.published, 1)
	assert.Equal(t, stockCalls, catalog.stockCalls)
}

func TestStoreInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("restores saved cart once", func(t *testing.T) {
		durable := &memDurable{has: true, saved: Cart{{ID: 3, Amount: 2}, {ID: 1, Amount: 1}}}
		s := newTestStore(newFakeCatalog(nil), durable, nil)

		require.NoError(t, s.Initialize(ctx))
		assert.Equal(t, Cart{{ID: 3, Amount: 2}, {ID: 1, Amount: 1}}, s.Cart())

		durable.saved = Cart{{ID: 9, Amount: 9}}
		require.NoError(t, s.Initialize(ctx))
		assert.Equal(t, []int64{3, 1}, ids(s.Cart()))
	})

	t.Run("duplicate ids in saved data are collapsed", func(t *testing.T) {
		durable := &memDurable{has: true, saved: Cart{{ID: 3, Amount: 2}, {ID: 3, Amount: 5}}}
		s := newTestStore(newFakeCatalog(nil), durable, nil)

		require.NoError(t, s.Initialize(ctx))
		assert.Equal(t, Cart{{ID: 3, Amount: 2}}, s.Cart())
	})

	t.Run("load error starts empty", func(t *testing.T) {
		durable := &memDurable{loadErr: errors.New("corrupt")}
		s := newTestStore(newFakeCatalog(nil), durable, nil)

		assert.Error(t, s.Initialize(ctx))
		assert.Empty(t, s.Cart())
	})
}

// gatedDurable blocks Load until released.
type gatedDurable struct {
	memDurable
	loading chan struct{}
	release chan struct{}
}

func (g *gatedDurable) Load(ctx context.Context) (Cart, bool, error) {
	close(g.loading)
	<-g.release
	return g.memDurable.Load(ctx)
}

func TestStoreInitializeRacingMutation(t *testing.T) {
	ctx := context.Background()
	durable := &gatedDurable{
		memDurable: memDurable{has: true, saved: Cart{{ID: 2, Amount: 1}}},
		loading:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s := newTestStore(&lockedCatalog{inner: newFakeCatalog(map[int64]int{1: 3, 2: 3})}, durable, nil)

	initDone := make(chan error, 1)
	go func() { initDone <- s.Initialize(ctx) }()
	<-durable.loading

	addDone := make(chan error, 1)
	go func() { addDone <- s.AddProduct(ctx, 1) }()

	close(durable.release)
	require.NoError(t, <-initDone)
	require.NoError(t, <-addDone)

	assert.Equal(t, map[int64]int{1: 1, 2: 1}, amounts(s.Cart()))
}

func TestStoreInitializeAfterMutationKeepsLiveCart(t *testing.T) {
	ctx := context.Background()
	// saves fail so the stale copy stays on disk
	durable := &memDurable{has: true, saved: Cart{{ID: 2, Amount: 1}}, saveErr: errors.New("read only")}
	s := newTestStore(newFakeCatalog(map[int64]int{1: 3, 2: 3}), durable, nil)

	require.NoError(t, s.AddProduct(ctx, 1))
	require.NoError(t, s.Initialize(ctx))

	assert.Equal(t, map[int64]int{1: 1}, amounts(s.Cart()))
}

func TestStorePersistenceFailureIsNotAReconcileFailure(t *testing.T) {
	ctx := context.Background()
	durable := &memDurable{saveErr: errors.New("disk full")}
	notifier := &recordingNotifier{}
	s := newTestStore(newFakeCatalog(map[int64]int{1: 3}), durable, notifier)

	require.NoError(t, s.AddProduct(ctx, 1))
	assert.Equal(t, map[int64]int{1: 1}, amounts(s.Cart()))
	assert.Empty(t, notifier.notices)
}

// cancellingCatalog cancels the caller's context once stock has been read,
// like a client hanging up mid-request.
type cancellingCatalog struct {
	*fakeCatalog
	cancel context.CancelFunc
}

func (c cancellingCatalog) GetStock(ctx context.Context, id int64) (Stock, error) {
	st, err := c.fakeCatalog.GetStock(ctx, id)
	c.cancel()
	return st, err
}

// ctxDurable refuses to write with a dead context, as database/sql does.
type ctxDurable struct {
	memDurable
}

func (d *ctxDurable) Save(ctx context.Context, c Cart) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.memDurable.Save(ctx, c)
}

func TestStorePersistsAfterCallerCancels(t *testing.T) {
	durable := &ctxDurable{}
	pub := &recordingPublisher{}
	fake := newFakeCatalog(map[int64]int{1: 5})
	s := newTestStore(fake, durable, nil, WithPublisher(pub))
	require.NoError(t, s.AddProduct(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	s.reconciler = NewReconciler(cancellingCatalog{fakeCatalog: fake, cancel: cancel})
	require.NoError(t, s.UpdateProductAmount(ctx, 1, 3))
	require.Error(t, ctx.Err())

	saved, ok, err := durable.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, amounts(s.Cart()), amounts(saved))
	assert.Equal(t, map[int64]int{1: 3}, amounts(saved))
	require.Len(t, pub.published, 2)
}

func TestStorePublishesCommittedSnapshots(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := newTestStore(newFakeCatalog(map[int64]int{1: 3}), nil, nil, WithPublisher(pub))

	require.NoError(t, s.AddProduct(ctx, 1))
	require.NoError(t, s.AddProduct(ctx, 1))
	assert.Error(t, s.RemoveProduct(ctx, 2))

	require.Len(t, pub.published, 2)
	assert.Equal(t, 2, pub.published[1][0].Amount)
}

func TestStoreCartIsACopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newFakeCatalog(map[int64]int{1: 3}), nil, nil)
	require.NoError(t, s.AddProduct(ctx, 1))

	first := s.Cart()
	first[0].Amount = 99
	assert.Equal(t, 1, s.Cart()[0].Amount)
	assert.Equal(t, s.Cart(), s.Cart())
}

func TestStoreConcurrentAddsNeverExceedStock(t *testing.T) {
	ctx := context.Background()
	catalog := &lockedCatalog{inner: newFakeCatalog(map[int64]int{1: 10, 2: 10})}
	s := newTestStore(catalog, &memDurable{}, &recordingNotifier{})

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AddProduct(ctx, int64(i%2)+1)
			_ = s.Cart()
		}(i)
	}
	wg.Wait()

	got := s.Cart()
	assert.Equal(t, map[int64]int{1: 10, 2: 10}, amounts(got))
	assert.Len(t, got, 2)
}

func TestStoreRandomSequencesKeepLinesUnique(t *testing.T) {
	stock := map[int64]int{1: 1, 2: 2, 3: 4, 4: 0}
	const unknown = int64(9)

	for seed := int64(1); seed <= 20; seed++ {
		rnd := rand.New(rand.NewSource(seed))
		ctx := context.Background()
		durable := &memDurable{}
		s := newTestStore(newFakeCatalog(stock), durable, nil)
		model := map[int64]int{}

		for step := 0; step < 200; step++ {
			id := int64(rnd.Intn(5)) + 1
			if id == 5 {
				id = unknown
			}
			limit, known := stock[id]

			switch rnd.Intn(3) {
			case 0:
				err := s.AddProduct(ctx, id)
				if known && model[id]+1 <= limit {
					require.NoError(t, err)
					model[id]++
				} else {
					require.Error(t, err)
				}
			case 1:
				err := s.RemoveProduct(ctx, id)
				if _, ok := model[id]; ok {
					require.NoError(t, err)
					delete(model, id)
				} else {
					require.Equal(t, NotFound, KindOf(err))
				}
			default:
				amount := rnd.Intn(6) - 1
				err := s.UpdateProductAmount(ctx, id, amount)
				_, inCart := model[id]
				switch {
				case amount <= 0:
					require.NoError(t, err)
				case known && inCart && amount <= limit:
					require.NoError(t, err)
					model[id] = amount
				default:
					require.Error(t, err)
				}
			}

			got := s.Cart()
			seen := map[int64]bool{}
			for _, p := range got {
				require.False(t, seen[p.ID], "seed %d step %d: duplicate line %d", seed, step, p.ID)
				seen[p.ID] = true
				require.Positive(t, p.Amount)
				require.LessOrEqual(t, p.Amount, stock[p.ID])
			}
			require.Equal(t, model, amounts(got), "seed %d step %d", seed, step)
		}

		if durable.has {
			assert.Equal(t, model, amounts(durable.saved))
		}
	}
}

type lockedCatalog struct {
	mu    sync.Mutex
	inner *fakeCatalog
}

func (l *lockedCatalog) GetStock(ctx context.Context, id int64) (Stock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.GetStock(ctx, id)
}

func (l *lockedCatalog) GetProduct(ctx context.Context, id int64) (Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.GetProduct(ctx, id)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Erro na adição do produto", Message(OpAdd, FetchFailure))
	assert.Equal(t, "Erro na adição do produto", Message(OpAdd, UnknownFailure))
	assert.Equal(t, "Erro na remoção do produto", Message(OpRemove, NotFound))
	assert.Equal(t, "Erro na alteração de quantidade do produto", Message(OpUpdate, UnknownFailure))
	assert.Equal(t, "Quantidade solicitada fora de estoque", Message(OpUpdate, InsufficientStock))
}
