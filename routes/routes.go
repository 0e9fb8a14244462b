package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/T1collo/agrofresh/controllers"
	"github.com/T1collo/agrofresh/middleware"
)

// Controllers bundles what RegisterRoutes wires up.
type Controllers struct {
	Auth    *controllers.AuthController
	Profile *controllers.ProfileController
	Product *controllers.ProductController
	Cart    *controllers.CartController
}

// RegisterRoutes sets up every /api route. authLimit guards the public
// auth endpoints; pass nil to skip rate limiting.
func RegisterRoutes(r *gin.Engine, ctl Controllers, tokens middleware.TokenValidator, authLimit gin.HandlerFunc) {
	requireAuth := middleware.AuthMiddleware(tokens)
	api := r.Group("/api")

	// Public catalogue
	api.GET("/products", ctl.Product.ListProducts)
	api.GET("/products/:id", ctl.Product.GetProduct)
	api.GET("/categories", ctl.Product.ListCategories)

	auth := api.Group("/auth")
	if authLimit != nil {
		auth.Use(authLimit)
	}
	auth.POST("/register", ctl.Auth.Register)
	auth.POST("/login", ctl.Auth.Login)
	auth.POST("/refresh", ctl.Auth.Refresh)
	auth.POST("/forgot-password", ctl.Auth.ForgotPassword)
	auth.POST("/reset-password", ctl.Auth.ResetPassword)
	auth.POST("/logout", requireAuth, ctl.Auth.Logout)
	auth.GET("/session", requireAuth, ctl.Auth.Session)

	profile := api.Group("/profile")
	profile.Use(requireAuth)
	profile.GET("", ctl.Profile.GetProfile)
	profile.PUT("", ctl.Profile.UpdateProfile)
	profile.GET("/location", ctl.Profile.GetLocation)
	profile.PUT("/location", ctl.Profile.SaveLocation)

	cart := api.Group("/cart")
	cart.Use(requireAuth)
	cart.GET("", ctl.Cart.GetCart)
	cart.DELETE("", ctl.Cart.ClearCart)
	cart.POST("/items", ctl.Cart.AddItem)
	cart.PUT("/items/:id", ctl.Cart.UpdateItem)
	cart.DELETE("/items/:id", ctl.Cart.RemoveItem)
	cart.POST("/checkout", ctl.Cart.Checkout)

	admin := api.Group("/admin")
	admin.Use(requireAuth, middleware.RequireRole("ADMIN"))
	admin.GET("/ping", controllers.AdminPing)
}
