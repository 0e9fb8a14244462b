package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/pkg/cart"
)

// CartRepository persists one cart per user.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	DeleteCart(ctx context.Context, userID string) error
}

type CartService interface {
	GetCart(ctx context.Context, userID string) (cart.Snapshot, error)
	AddItem(ctx context.Context, userID, productID string, qty int) (cart.Snapshot, error)
	UpdateQuantity(ctx context.Context, userID, productID string, qty int) (cart.Snapshot, error)
	RemoveItem(ctx context.Context, userID, productID string) (cart.Snapshot, error)
	Clear(ctx context.Context, userID string) (cart.Snapshot, error)
	Checkout(ctx context.Context, userID string) error
}

type cartServiceImpl struct {
	repo     CartRepository
	products ProductService
	logger   *zap.Logger
}

func NewCartService(repo CartRepository, products ProductService, logger *zap.Logger) CartService {
	return &cartServiceImpl{repo: repo, products: products, logger: logger}
}

func (s *cartServiceImpl) load(ctx context.Context, userID string) (*cart.Store, error) {
	stored, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, internal("failed to get cart", err)
	}
	if stored == nil {
		return cart.NewStore(), nil
	}
	return cart.NewStore(stored.Items...), nil
}

func (s *cartServiceImpl) save(ctx context.Context, userID string, snap cart.Snapshot) error {
	if err := s.repo.SaveCart(ctx, &models.Cart{UserID: userID, Items: snap.Lines()}); err != nil {
		return internal("failed to save cart", err)
	}
	return nil
}

// mutate loads the user's cart, applies op and persists the result.
func (s *cartServiceImpl) mutate(ctx context.Context, userID string, op func(*cart.Store) cart.Snapshot) (cart.Snapshot, error) {
	store, err := s.load(ctx, userID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	snap := op(store)
	if err := s.save(ctx, userID, snap); err != nil {
		return cart.Snapshot{}, err
	}
	return snap, nil
}

func (s *cartServiceImpl) GetCart(ctx context.Context, userID string) (cart.Snapshot, error) {
	store, err := s.load(ctx, userID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	return store.Snapshot(), nil
}

// AddItem prices the line from the catalogue. Products with no stock are
// refused; no other quantity bound applies.
func (s *cartServiceImpl) AddItem(ctx context.Context, userID, productID string, qty int) (cart.Snapshot, error) {
	if qty <= 0 {
		return cart.Snapshot{}, ErrInvalidQuantity
	}
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if product.Stock <= 0 {
		return cart.Snapshot{}, ErrOutOfStock
	}

	line := cart.Line{
		ID:           product.ID.String(),
		Name:         product.Name,
		UnitPrice:    product.Price,
		Unit:         product.Unit,
		UnitQuantity: product.UnitQuantity,
		ImageURL:     product.ImageURL,
	}
	return s.mutate(ctx, userID, func(st *cart.Store) cart.Snapshot {
		return st.AddItem(line, qty)
	})
}

func (s *cartServiceImpl) UpdateQuantity(ctx context.Context, userID, productID string, qty int) (cart.Snapshot, error) {
	return s.mutate(ctx, userID, func(st *cart.Store) cart.Snapshot {
		return st.UpdateQuantity(productID, qty)
	})
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, userID, productID string) (cart.Snapshot, error) {
	return s.mutate(ctx, userID, func(st *cart.Store) cart.Snapshot {
		return st.RemoveItem(productID)
	})
}

func (s *cartServiceImpl) Clear(ctx context.Context, userID string) (cart.Snapshot, error) {
	if err := s.repo.DeleteCart(ctx, userID); err != nil {
		return cart.Snapshot{}, internal("failed to clear cart", err)
	}
	return cart.Snapshot{}, nil
}

// Checkout is a placeholder until an order flow exists.
func (s *cartServiceImpl) Checkout(ctx context.Context, userID string) error {
	s.logger.Info("checkout requested", zap.String("user_id", userID))
	return ErrCheckoutUnavailable
}
