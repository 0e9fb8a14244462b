// Package clients is the HTTP client for the storefront API. It holds the
// caller's token pair and tells subscribers when the auth state changes.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/T1collo/agrofresh/models"
)

// AuthEvent is published after a call changes the held tokens.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

var (
	// ErrNotSignedIn is returned by calls that need a token when none is held.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrProfileNotFound means the account exists but its profile row does not.
	ErrProfileNotFound = errors.New("user profile not found")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront api: %d %s", e.StatusCode, e.Message)
}

// Tokens is the session the client currently holds.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RemoteSession is the server's view of the current access token.
type RemoteSession struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SignUpInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Name            string `json:"name"`
	Phone           string `json:"phone,omitempty"`
}

type StorefrontClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu     sync.RWMutex
	tokens *Tokens
	subs   map[int]func(AuthEvent)
	nextID int
}

func NewStorefrontClient(baseURL string, timeout time.Duration, logger *zap.Logger) *StorefrontClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorefrontClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		subs:    make(map[int]func(AuthEvent)),
	}
}

// Subscribe registers fn for auth events. Events are delivered on the
// goroutine that made the call, after the tokens were updated.
func (s *StorefrontClient) Subscribe(fn func(AuthEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *StorefrontClient) emit(evt AuthEvent) {
	s.mu.RLock()
	fns := make([]func(AuthEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(evt)
	}
}

// Tokens returns a copy of the held tokens, or nil.
func (s *StorefrontClient) Tokens() *Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return nil
	}
	t := *s.tokens
	return &t
}

// SetTokens restores a previously saved session without emitting events.
func (s *StorefrontClient) SetTokens(t *Tokens) {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
}

func (s *StorefrontClient) setTokens(t *Tokens, evt AuthEvent) {
	s.SetTokens(t)
	s.emit(evt)
}

func (s *StorefrontClient) SignIn(ctx context.Context, email, password string) (*Tokens, error) {
	var t Tokens
	body := map[string]string{"email": email, "password": password}
	if err := s.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &t, false); err != nil {
		return nil, err
	}
	s.setTokens(&t, EventSignedIn)
	return &t, nil
}

// SignUp registers the account and then signs in with it.
func (s *StorefrontClient) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	var resp struct {
		User models.User `json:"user"`
	}
	if err := s.do(ctx, http.MethodPost, "/api/auth/register", nil, in, &resp, false); err != nil {
		return nil, err
	}
	if _, err := s.SignIn(ctx, in.Email, in.Password); err != nil {
		return nil, fmt.Errorf("sign in after sign up: %w", err)
	}
	return &resp.User, nil
}

// SignOut drops the local tokens even when the server call fails.
func (s *StorefrontClient) SignOut(ctx context.Context) error {
	var err error
	if s.Tokens() != nil {
		err = s.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil, true)
	}
	s.setTokens(nil, EventSignedOut)
	return err
}

// GetSession returns nil, nil when there is no usable session.
func (s *StorefrontClient) GetSession(ctx context.Context) (*RemoteSession, error) {
	if s.Tokens() == nil {
		return nil, nil
	}
	var rs RemoteSession
	err := s.do(ctx, http.MethodGet, "/api/auth/session", nil, nil, &rs, true)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

// RefreshSession rotates the refresh token.
func (s *StorefrontClient) RefreshSession(ctx context.Context) (*Tokens, error) {
	held := s.Tokens()
	if held == nil {
		return nil, ErrNotSignedIn
	}
	var t Tokens
	body := map[string]string{"refresh_token": held.RefreshToken}
	if err := s.do(ctx, http.MethodPost, "/api/auth/refresh", nil, body, &t, false); err != nil {
		return nil, err
	}
	s.setTokens(&t, EventTokenRefreshed)
	return &t, nil
}

func (s *StorefrontClient) ForgotPassword(ctx context.Context, email string) error {
	return s.do(ctx, http.MethodPost, "/api/auth/forgot-password", nil, map[string]string{"email": email}, nil, false)
}

func (s *StorefrontClient) ResetPassword(ctx context.Context, token, password, confirm string) error {
	body := map[string]string{"token": token, "password": password, "confirm_password": confirm}
	return s.do(ctx, http.MethodPost, "/api/auth/reset-password", nil, body, nil, false)
}

// GetProfile maps a 404 to ErrProfileNotFound.
func (s *StorefrontClient) GetProfile(ctx context.Context) (*models.User, error) {
	var u models.User
	err := s.do(ctx, http.MethodGet, "/api/profile", nil, nil, &u, true)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, apiErr.Message)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *StorefrontClient) UpdateProfile(ctx context.Context, name, phone string) (*models.User, error) {
	var u models.User
	body := map[string]string{"name": name, "phone": phone}
	if err := s.do(ctx, http.MethodPut, "/api/profile", nil, body, &u, true); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *StorefrontClient) GetLocation(ctx context.Context) (*models.Location, error) {
	var loc models.Location
	if err := s.do(ctx, http.MethodGet, "/api/profile/location", nil, nil, &loc, true); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *StorefrontClient) SaveLocation(ctx context.Context, lat, lng float64, address string) (*models.Location, error) {
	var loc models.Location
	body := map[string]interface{}{"latitude": lat, "longitude": lng, "address": address}
	if err := s.do(ctx, http.MethodPut, "/api/profile/location", nil, body, &loc, true); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *StorefrontClient) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	var products []models.Product
	if err := s.do(ctx, http.MethodGet, "/api/products", q.Values(), nil, &products, false); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *StorefrontClient) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := s.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, nil, &p, false); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *StorefrontClient) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.do(ctx, http.MethodGet, "/api/categories", nil, nil, &categories, false); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *StorefrontClient) GetCart(ctx context.Context) (*models.CartView, error) {
	return s.cartCall(ctx, http.MethodGet, "/api/cart", nil)
}

func (s *StorefrontClient) AddToCart(ctx context.Context, productID string, qty int) (*models.CartView, error) {
	return s.cartCall(ctx, http.MethodPost, "/api/cart/items", map[string]interface{}{"product_id": productID, "quantity": qty})
}

func (s *StorefrontClient) UpdateCartItem(ctx context.Context, productID string, qty int) (*models.CartView, error) {
	return s.cartCall(ctx, http.MethodPut, "/api/cart/items/"+url.PathEscape(productID), map[string]int{"quantity": qty})
}

func (s *StorefrontClient) RemoveCartItem(ctx context.Context, productID string) (*models.CartView, error) {
	return s.cartCall(ctx, http.MethodDelete, "/api/cart/items/"+url.PathEscape(productID), nil)
}

func (s *StorefrontClient) ClearCart(ctx context.Context) (*models.CartView, error) {
	return s.cartCall(ctx, http.MethodDelete, "/api/cart", nil)
}

func (s *StorefrontClient) Checkout(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, "/api/cart/checkout", nil, nil, nil, true)
}

func (s *StorefrontClient) cartCall(ctx context.Context, method, path string, body interface{}) (*models.CartView, error) {
	var view models.CartView
	if err := s.do(ctx, method, path, nil, body, &view, true); err != nil {
		return nil, err
	}
	return &view, nil
}

// do sends one request. Non-2xx answers become *APIError with the message
// taken from the body's "error" field.
func (s *StorefrontClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, auth bool) error {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		t := s.Tokens()
		if t == nil {
			return ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+t.AccessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 400 {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		s.logger.Debug("storefront api error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("error", msg),
		)
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
