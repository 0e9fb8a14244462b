package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/T1collo/agrofresh/common/errors"
	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/services"
)

// CacheRecorder receives cache hit/miss observations.
type CacheRecorder interface {
	CacheHit(cache string)
	CacheMiss(cache string)
}

type noopRecorder struct{}

func (noopRecorder) CacheHit(string)  {}
func (noopRecorder) CacheMiss(string) {}

type ProductController struct {
	products services.ProductService
	cache    ProductCache
	recorder CacheRecorder
	logger   *zap.Logger
}

func NewProductController(products services.ProductService, cache ProductCache, recorder CacheRecorder, logger *zap.Logger) *ProductController {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &ProductController{products: products, cache: cache, recorder: recorder, logger: logger}
}

// ListProducts handles GET /api/products. Successful listings are cached
// under the serialized query; errors are never cached.
func (pc *ProductController) ListProducts(c *gin.Context) {
	var q models.ProductQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		apperrors.Abort(c, invalidRequest(err))
		return
	}
	key := q.WithDefaults().Key()
	ctx := c.Request.Context()

	if cached, ok := pc.cache.Get(ctx, key); ok {
		pc.recorder.CacheHit("products")
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}
	pc.recorder.CacheMiss("products")

	products, err := pc.products.ListProducts(ctx, q)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	body, err := json.Marshal(products)
	if err != nil {
		apperrors.Abort(c, apperrors.ErrInternalServer.Wrap(err))
		return
	}
	pc.cache.Set(ctx, key, body)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// GetProduct handles GET /api/products/:id
func (pc *ProductController) GetProduct(c *gin.Context) {
	product, err := pc.products.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ListCategories handles GET /api/categories
func (pc *ProductController) ListCategories(c *gin.Context) {
	categories, err := pc.products.ListCategories(c.Request.Context())
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}
