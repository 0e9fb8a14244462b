package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/repository"
)

// sortableColumns are the product columns a listing may be ordered by.
var sortableColumns = map[string]bool{
	"name":          true,
	"price":         true,
	"stock":         true,
	"unit_quantity": true,
	"created_at":    true,
	"updated_at":    true,
}

type ProductService interface {
	ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type productServiceImpl struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	logger     *zap.Logger
}

func NewProductService(products repository.ProductRepository, categories repository.CategoryRepository, logger *zap.Logger) ProductService {
	return &productServiceImpl{products: products, categories: categories, logger: logger}
}

// ListProducts applies q. categoryId wins over category when both are set.
func (s *productServiceImpl) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	q = q.WithDefaults()
	filter, err := parseProductQuery(q)
	if err != nil {
		return nil, err
	}

	if filter.CategoryID == nil && q.Category != "" {
		category, err := s.categories.FindByName(ctx, strings.TrimSpace(q.Category))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCategoryNotFound
			}
			return nil, internal("failed to look up category", err)
		}
		filter.CategoryID = &category.ID
	}

	products, err := s.products.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		return nil, internal("Error fetching products", err)
	}
	return products, nil
}

func parseProductQuery(q models.ProductQuery) (repository.ProductFilter, error) {
	filter := repository.ProductFilter{Search: strings.TrimSpace(q.Search)}

	if q.CategoryID != "" {
		id, err := uuid.Parse(q.CategoryID)
		if err != nil {
			return filter, ErrInvalidCategory
		}
		filter.CategoryID = &id
	}

	if !sortableColumns[q.Sort] {
		return filter, ErrInvalidSort
	}
	filter.Sort = q.Sort

	switch q.Order {
	case "asc":
	case "desc":
		filter.Desc = true
	default:
		return filter, ErrInvalidOrder
	}

	if q.Limit != "" {
		limit, err := strconv.Atoi(q.Limit)
		if err != nil || limit <= 0 {
			return filter, ErrInvalidLimit
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (s *productServiceImpl) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrProductNotFound
	}
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, internal("failed to load product", err)
	}
	return p, nil
}

func (s *productServiceImpl) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.FindAll(ctx)
	if err != nil {
		return nil, internal("failed to list categories", err)
	}
	return categories, nil
}
