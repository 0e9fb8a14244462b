// Package productquery fetches product listings through a session-scoped
// cache. Query debounces live input and applies only the newest result.
package productquery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/pkg/sessionstore"
)

const (
	CacheTTL      = 5 * time.Minute
	DebounceDelay = 300 * time.Millisecond

	storageKey = "products"
)

// Fetcher is the remote listing call, normally clients.StorefrontClient.
type Fetcher interface {
	ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error)
}

// Result is what Query publishes. On error Products still holds the last
// good listing.
type Result struct {
	Query      models.ProductQuery
	Products   []models.Product
	Err        error
	Generation uint64
}

type Option func(*Layer)

func WithLogger(l *zap.Logger) Option { return func(q *Layer) { q.logger = l } }

func WithClock(now func() time.Time) Option { return func(q *Layer) { q.now = now } }

func WithDebounce(d time.Duration) Option { return func(q *Layer) { q.delay = d } }

type Layer struct {
	fetcher Fetcher
	storage sessionstore.Storage
	logger  *zap.Logger
	now     func() time.Time
	delay   time.Duration
	group   singleflight.Group

	mu          sync.Mutex
	timer       *time.Timer
	generation  uint64
	inflightKey string
	cancels     []context.CancelFunc
	latest      Result
	subs        map[int]func(Result)
	nextID      int
	closed      bool
}

func New(fetcher Fetcher, storage sessionstore.Storage, opts ...Option) *Layer {
	l := &Layer{
		fetcher: fetcher,
		storage: storage,
		logger:  zap.NewNop(),
		now:     time.Now,
		delay:   DebounceDelay,
		subs:    make(map[int]func(Result)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FetchProducts returns the cached listing when it is fresh and was stored
// for the same parameters. Otherwise it asks the server and replaces the
// cache; on failure the old cache stays in place. Concurrent calls with the
// same parameters share one request; a caller whose shared request was
// cancelled by someone else retries once on its own context.
func (l *Layer) FetchProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	key := q.Key()
	if products, ok := l.cached(ctx, key); ok {
		return products, nil
	}

	products, err := l.load(ctx, q, key)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		l.logger.Debug("shared product fetch cancelled, retrying", zap.String("key", key))
		products, err = l.load(ctx, q, key)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	return products, nil
}

func (l *Layer) load(ctx context.Context, q models.ProductQuery, key string) ([]models.Product, error) {
	v, err, shared := l.group.Do(key, func() (interface{}, error) {
		products, err := l.fetcher.ListProducts(ctx, q)
		if err != nil {
			return nil, err
		}
		if products == nil {
			products = []models.Product{}
		}
		if err := sessionstore.Write(ctx, l.storage, storageKey, products, key, l.now()); err != nil {
			l.logger.Warn("failed to cache products", zap.Error(err))
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.logger.Debug("product fetch shared", zap.String("key", key))
	}
	return v.([]models.Product), nil
}

func (l *Layer) cached(ctx context.Context, key string) ([]models.Product, bool) {
	env, ok, err := sessionstore.Read(ctx, l.storage, storageKey)
	if err != nil {
		l.logger.Warn("failed to read cached products", zap.Error(err))
		return nil, false
	}
	if !ok || env.Params != key || !env.Fresh(l.now(), CacheTTL) {
		return nil, false
	}
	var products []models.Product
	if err := env.Decode(&products); err != nil {
		return nil, false
	}
	return products, true
}

// Query schedules a fetch once q has been stable for the debounce delay.
// A later call replaces a pending one.
func (l *Layer) Query(q models.ProductQuery) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.delay, func() { l.settle(q) })
}

// settle runs one generation. A newer generation with different parameters
// cancels the older request; one with the same parameters joins it.
func (l *Layer) settle(q models.ProductQuery) {
	key := q.Key()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.generation++
	gen := l.generation
	if key != l.inflightKey {
		for _, cancel := range l.cancels {
			cancel()
		}
		l.cancels = nil
		l.inflightKey = key
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancels = append(l.cancels, cancel)
	l.mu.Unlock()
	defer cancel()

	products, err := l.FetchProducts(ctx, q)

	l.mu.Lock()
	if gen != l.generation || errors.Is(err, context.Canceled) {
		l.mu.Unlock()
		l.logger.Debug("dropping superseded product result", zap.Uint64("generation", gen))
		return
	}
	res := Result{Query: q, Products: products, Err: err, Generation: gen}
	if err != nil {
		res.Products = l.latest.Products
	}
	l.latest = res
	l.cancels = nil
	l.inflightKey = ""
	fns := make([]func(Result), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(res)
	}
}

// Latest is the most recently applied result.
func (l *Layer) Latest() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest
}

// Subscribe registers fn for applied results.
func (l *Layer) Subscribe(fn func(Result)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Close stops a pending query and cancels any request in flight.
func (l *Layer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
	}
	for _, cancel := range l.cancels {
		cancel()
	}
	l.cancels = nil
}
