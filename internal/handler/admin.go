package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattend/internal/geo"
	"qrattend/internal/roster"
)

// Users handles GET /api/users (admin).
func (h *Handler) Users(c *gin.Context) {
	users, err := h.roster.Users(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, users)
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateUserRole handles PUT /api/users/:id/role (admin).
func (h *Handler) UpdateUserRole(c *gin.Context) {
	userID, err := pathInt64(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !roster.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	user, err := h.roster.UpdateUserRole(c.Request.Context(), userID, req.Role)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetLocation handles GET /api/admin/location (admin).
func (h *Handler) GetLocation(c *gin.Context) {
	c.JSON(http.StatusOK, h.location.Reference())
}

type updateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// UpdateLocation handles PUT /api/admin/location (admin): stores a new
// reference coordinate, effective immediately for all submissions.
func (h *Handler) UpdateLocation(c *gin.Context) {
	var req updateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude must be numbers"})
		return
	}

	p := geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := h.location.UpdateReference(c.Request.Context(), p); err != nil {
		if errors.Is(err, geo.ErrInvalidReference) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates out of range"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
