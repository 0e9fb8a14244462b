package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/T1collo/agrofresh/models"
)

// ProductFilter narrows a product listing. Zero values mean "no filter";
// Sort must already be a validated column name.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string
	Sort       string
	Desc       bool
	Limit      int
}

type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type CategoryRepository interface {
	FindAll(ctx context.Context) ([]models.Category, error)
	FindByName(ctx context.Context, name string) (*models.Category, error)
}

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) List(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).Preload("Category")

	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.Sort != "" {
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: filter.Sort}, Desc: filter.Desc})
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	products := []models.Product{}
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

type GormCategoryRepository struct {
	db *gorm.DB
}

func NewGormCategoryRepository(db *gorm.DB) CategoryRepository {
	return &GormCategoryRepository{db: db}
}

func (r *GormCategoryRepository) FindAll(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// FindByName matches case-insensitively.
func (r *GormCategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	var c models.Category
	if err := r.db.WithContext(ctx).Where("name ILIKE ?", name).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
