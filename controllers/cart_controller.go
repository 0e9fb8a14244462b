package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/T1collo/agrofresh/common/errors"
	"github.com/T1collo/agrofresh/middleware"
	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/pkg/cart"
	"github.com/T1collo/agrofresh/services"
)

type CartController struct {
	carts services.CartService
}

func NewCartController(carts services.CartService) *CartController {
	return &CartController{carts: carts}
}

func cartUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Abort(c, apperrors.ErrUnauthorized)
		return "", false
	}
	return userID.String(), true
}

func respondCart(c *gin.Context, snap cart.Snapshot, err error) {
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewCartView(snap))
}

// GetCart handles GET /api/cart
func (cc *CartController) GetCart(c *gin.Context) {
	userID, ok := cartUser(c)
	if !ok {
		return
	}
	snap, err := cc.carts.GetCart(c.Request.Context(), userID)
	respondCart(c, snap, err)
}

// AddItem handles POST /api/cart/items. Quantity defaults to 1.
func (cc *CartController) AddItem(c *gin.Context) {
	userID, ok := cartUser(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, invalidRequest(err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	snap, err := cc.carts.AddItem(c.Request.Context(), userID, req.ProductID, req.Quantity)
	respondCart(c, snap, err)
}

// UpdateItem handles PUT /api/cart/items/:id. A quantity of 0 or less
// removes the line.
func (cc *CartController) UpdateItem(c *gin.Context) {
	userID, ok := cartUser(c)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, invalidRequest(err))
		return
	}
	snap, err := cc.carts.UpdateQuantity(c.Request.Context(), userID, c.Param("id"), *req.Quantity)
	respondCart(c, snap, err)
}

// RemoveItem handles DELETE /api/cart/items/:id
func (cc *CartController) RemoveItem(c *gin.Context) {
	userID, ok := cartUser(c)
	if !ok {
		return
	}
	snap, err := cc.carts.RemoveItem(c.Request.Context(), userID, c.Param("id"))
	respondCart(c, snap, err)
}

// ClearCart handles DELETE /api/cart
func (cc *CartController) ClearCart(c *gin.Context) {
	userID, ok := cartUser(c)
	if !ok {
		return
	}
	snap, err := cc.carts.Clear(c.Request.Context(), userID)
	respondCart(c, snap, err)
}

// Checkout handles POST /api/cart/checkout
func (cc *CartController) Checkout(c *gin.Context) {
	userID, ok := cartUser(c)
	if !ok {
		return
	}
	if err := cc.carts.Checkout(c.Request.Context(), userID); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "checkout initiated"})
}
