package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/T1collo/agrofresh/middleware"
)

// AdminPing handles GET /api/admin/ping. It only proves the role gate let
// the caller through.
func AdminPing(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	c.JSON(http.StatusOK, gin.H{"message": "pong", "user_id": userID, "role": c.GetString(middleware.RoleKey)})
}
