package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"qrattend/internal/roster"
)

type createGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateGroup handles POST /api/groups (admin).
func (h *Handler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group name must not be empty"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group name must not be empty"})
		return
	}

	group, err := h.roster.CreateGroup(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, group)
}

// ListGroups handles GET /api/groups (any authenticated user).
func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.roster.Groups(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, groups)
}

type setCuratorRequest struct {
	CuratorID int64 `json:"curatorId" binding:"required"`
}

// SetCurator handles PUT /api/groups/:id/curator (admin).
func (h *Handler) SetCurator(c *gin.Context) {
	groupID, err := pathInt64(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	var req setCuratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.roster.SetCurator(c.Request.Context(), groupID, req.CuratorID); err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type addMemberRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

// AddMember handles POST /api/groups/:id/members (admin). The new membership
// becomes the user's active one.
func (h *Handler) AddMember(c *gin.Context) {
	groupID, err := pathInt64(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.roster.AddMember(c.Request.Context(), groupID, req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func pathInt64(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}
