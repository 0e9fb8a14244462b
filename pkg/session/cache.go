// Package session keeps the signed-in user's profile in a short-lived cache
// and tracks whether the client is authenticated. It follows the server's
// auth events and refreshes the session token before it lapses.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/T1collo/agrofresh/clients"
	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/pkg/sessionstore"
)

type State string

const (
	StateLoading       State = "loading"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

const (
	ProfileTTL       = 5 * time.Minute
	RefreshInterval  = 4 * time.Minute
	RefreshThreshold = 5 * time.Minute

	storageKey = "user"
)

var (
	// ErrProfileNotFound is the non-fatal "account without a profile row"
	// failure. It clears the session without a notice or redirect.
	ErrProfileNotFound = clients.ErrProfileNotFound

	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrMissingFields    = errors.New("email and password are required")
)

// Remote is the part of clients.StorefrontClient the cache drives.
type Remote interface {
	GetSession(ctx context.Context) (*clients.RemoteSession, error)
	RefreshSession(ctx context.Context) (*clients.Tokens, error)
	GetProfile(ctx context.Context) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*clients.Tokens, error)
	SignUp(ctx context.Context, in clients.SignUpInput) (*models.User, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(clients.AuthEvent)) func()
}

// Notifier surfaces failures to the user.
type Notifier interface {
	Notify(message string)
	RedirectToAuth()
}

type nopNotifier struct{}

func (nopNotifier) Notify(string)   {}
func (nopNotifier) RedirectToAuth() {}

type Option func(*Cache)

func WithNotifier(n Notifier) Option { return func(c *Cache) { c.notifier = n } }

func WithLogger(l *zap.Logger) Option { return func(c *Cache) { c.logger = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func WithRefreshInterval(d time.Duration) Option { return func(c *Cache) { c.interval = d } }

// Cache is safe for concurrent use. The timer and event paths may
// interleave; the last write wins.
type Cache struct {
	remote   Remote
	storage  sessionstore.Storage
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
	interval time.Duration

	mu     sync.RWMutex
	state  State
	user   *models.User
	subs   map[int]func(State, *models.User)
	nextID int
	// lastErr is the failure that ended the session, cleared on sign-in.
	lastErr error

	runMu       sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	unsubscribe func()
}

func New(remote Remote, storage sessionstore.Storage, opts ...Option) *Cache {
	c := &Cache{
		remote:   remote,
		storage:  storage,
		notifier: nopNotifier{},
		logger:   zap.NewNop(),
		now:      time.Now,
		interval: RefreshInterval,
		state:    StateLoading,
		subs:     make(map[int]func(State, *models.User)),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start resolves the initial state, then follows auth events and re-checks
// the session every refresh interval until ctx ends or Stop is called.
func (c *Cache) Start(ctx context.Context) error {
	c.runMu.Lock()
	if c.cancel != nil {
		c.runMu.Unlock()
		return errors.New("session cache already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.ctx, c.cancel = ctx, cancel
	c.done = make(chan struct{})
	c.unsubscribe = c.remote.Subscribe(c.handleEvent)
	done := c.done
	c.runMu.Unlock()

	c.Check(ctx)

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.detach(done)
				return
			case <-ticker.C:
				c.Refresh(ctx)
			}
		}
	}()
	return nil
}

// detach drops the run state of the loop owning done once its context has
// ended, so events stop and Start can run again. Stop has already done this
// when it got there first.
func (c *Cache) detach(done chan struct{}) {
	c.runMu.Lock()
	if c.done != done {
		c.runMu.Unlock()
		return
	}
	cancel, unsubscribe := c.cancel, c.unsubscribe
	c.ctx = context.Background()
	c.cancel, c.done, c.unsubscribe = nil, nil, nil
	c.runMu.Unlock()
	unsubscribe()
	cancel()
}

func (c *Cache) started() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.cancel != nil
}

// Stop ends the timer and event subscription and waits for the timer loop.
func (c *Cache) Stop() {
	c.runMu.Lock()
	cancel, done, unsubscribe := c.cancel, c.done, c.unsubscribe
	c.ctx = context.Background()
	c.cancel, c.done, c.unsubscribe = nil, nil, nil
	c.runMu.Unlock()
	if cancel == nil {
		return
	}
	unsubscribe()
	cancel()
	<-done
}

func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// User is the adopted profile, or nil when not authenticated.
func (c *Cache) User() *models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Subscribe registers fn for state changes and returns its unsubscribe func.
func (c *Cache) Subscribe(fn func(State, *models.User)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Cache) set(state State, user *models.User) {
	c.mu.Lock()
	c.state, c.user = state, user
	if state == StateAuthenticated {
		c.lastErr = nil
	}
	fns := make([]func(State, *models.User), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(state, user)
	}
}

// Check adopts a fresh cached profile without touching the network, and
// otherwise resolves the session remotely.
func (c *Cache) Check(ctx context.Context) {
	if user, ok := c.cached(ctx); ok {
		c.set(StateAuthenticated, user)
		return
	}
	c.resolve(ctx)
}

// Reload drops back to loading and resolves from the server regardless of
// the cache.
func (c *Cache) Reload(ctx context.Context) {
	c.set(StateLoading, c.User())
	c.resolve(ctx)
}

// Refresh is the periodic routine: confirm the session, rotate the token when
// it is close to expiry, then make sure a fresh profile is held.
func (c *Cache) Refresh(ctx context.Context) {
	rs, err := c.remote.GetSession(ctx)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	if rs == nil {
		c.signedOut(ctx)
		return
	}
	if rs.ExpiresAt.Sub(c.now()) < RefreshThreshold {
		if _, err := c.remote.RefreshSession(ctx); err != nil {
			c.fail(ctx, err)
			return
		}
	}
	_ = c.adoptOrFetch(ctx)
}

func (c *Cache) resolve(ctx context.Context) {
	rs, err := c.remote.GetSession(ctx)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	if rs == nil {
		c.signedOut(ctx)
		return
	}
	_ = c.fetch(ctx)
}

func (c *Cache) adoptOrFetch(ctx context.Context) error {
	if user, ok := c.cached(ctx); ok {
		c.set(StateAuthenticated, user)
		return nil
	}
	return c.fetch(ctx)
}

// fetch loads the profile and caches it. A failure has already been handled
// when it is returned.
func (c *Cache) fetch(ctx context.Context) error {
	user, err := c.remote.GetProfile(ctx)
	if err != nil {
		c.fail(ctx, err)
		return err
	}
	if err := sessionstore.Write(ctx, c.storage, storageKey, user, "", c.now()); err != nil {
		c.logger.Warn("failed to cache profile", zap.Error(err))
	}
	c.set(StateAuthenticated, user)
	return nil
}

// cached returns the stored profile only while it is younger than the TTL.
func (c *Cache) cached(ctx context.Context) (*models.User, bool) {
	env, ok, err := sessionstore.Read(ctx, c.storage, storageKey)
	if err != nil {
		c.logger.Warn("failed to read cached profile", zap.Error(err))
		return nil, false
	}
	if !ok || !env.Fresh(c.now(), ProfileTTL) {
		return nil, false
	}
	var user models.User
	if err := env.Decode(&user); err != nil {
		return nil, false
	}
	return &user, true
}

func (c *Cache) clear(ctx context.Context) {
	if err := c.storage.Remove(ctx, storageKey); err != nil {
		c.logger.Warn("failed to clear cached profile", zap.Error(err))
	}
}

func (c *Cache) signedOut(ctx context.Context) {
	c.clear(ctx)
	c.set(StateAnonymous, nil)
}

// fail clears the session. Every failure but a missing profile row is shown
// to the user and sends them back to sign in. A call abandoned because the
// cache is stopping leaves the session as it was.
func (c *Cache) fail(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		c.logger.Debug("session check abandoned", zap.Error(err))
		return
	}
	c.signedOut(ctx)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	if errors.Is(err, ErrProfileNotFound) {
		c.logger.Info("signed in without a profile", zap.Error(err))
		return
	}
	c.logger.Warn("session check failed", zap.Error(err))
	c.notifier.Notify(message(err))
	c.notifier.RedirectToAuth()
}

func message(err error) string {
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "Unable to verify your session. Please sign in again."
}

func (c *Cache) handleEvent(evt clients.AuthEvent) {
	c.runMu.Lock()
	ctx := c.ctx
	c.runMu.Unlock()
	if ctx.Err() != nil {
		return
	}

	switch evt {
	case clients.EventSignedOut:
		c.signedOut(ctx)
		c.notifier.RedirectToAuth()
	case clients.EventTokenRefreshed:
		_ = c.fetch(ctx)
	case clients.EventSignedIn:
		_ = c.adoptOrFetch(ctx)
	}
}

// SignIn validates input, signs in and adopts the profile.
func (c *Cache) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if _, err := c.remote.SignIn(ctx, email, password); err != nil {
		return nil, err
	}
	return c.signedIn(ctx)
}

// signedIn reports the profile adopted after a sign-in. A started cache has
// already handled EventSignedIn, so its outcome is reused instead of fetching
// again.
func (c *Cache) signedIn(ctx context.Context) (*models.User, error) {
	if c.started() {
		c.mu.RLock()
		state, user, err := c.state, c.user, c.lastErr
		c.mu.RUnlock()
		switch {
		case state == StateAuthenticated && user != nil:
			return user, nil
		case state == StateAnonymous && err != nil:
			return nil, err
		}
	}
	if err := c.adoptOrFetch(ctx); err != nil {
		return nil, err
	}
	return c.User(), nil
}

// SignUp rejects a password mismatch before any network call.
func (c *Cache) SignUp(ctx context.Context, in clients.SignUpInput) (*models.User, error) {
	if in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if _, err := c.remote.SignUp(ctx, in); err != nil {
		return nil, err
	}
	return c.signedIn(ctx)
}

func (c *Cache) SignOut(ctx context.Context) error {
	err := c.remote.SignOut(ctx)
	c.signedOut(ctx)
	return err
}
