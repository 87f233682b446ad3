package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/relay-crm/core/internal/api/middleware"
	"github.com/relay-crm/core/internal/services"
)

// RuleHandler handles processing rule related requests
type RuleHandler struct {
	ruleService *services.RuleService
	logService  *services.LogService
}

// NewRuleHandler creates a new RuleHandler instance
func NewRuleHandler(ruleService *services.RuleService, logService *services.LogService) *RuleHandler {
	return &RuleHandler{
		ruleService: ruleService,
		logService:  logService,
	}
}

// CreateRuleRequest represents the request to create a processing rule
type CreateRuleRequest struct {
	Name              string `json:"name" binding:"required"`
	Description       string `json:"description"`
	SenderContains    string `json:"sender_contains"`
	SubjectContains   string `json:"subject_contains"`
	BodyContains      string `json:"body_contains"`
	AutoCreateProject bool   `json:"auto_create_project"`
	AutoCreateContact bool   `json:"auto_create_contact"`
	MarkImportant     bool   `json:"mark_important"`
	Priority          int    `json:"priority"`
}

// UpdateRuleRequest represents the request to update a processing rule.
// Pointer fields distinguish "not provided" from zero values.
type UpdateRuleRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	SenderContains    *string `json:"sender_contains"`
	SubjectContains   *string `json:"subject_contains"`
	BodyContains      *string `json:"body_contains"`
	AutoCreateProject *bool   `json:"auto_create_project"`
	AutoCreateContact *bool   `json:"auto_create_contact"`
	MarkImportant     *bool   `json:"mark_important"`
	Priority          *int    `json:"priority"`
	Active            *bool   `json:"active"`
}

// ListRules returns all rules of the current user in evaluation order
// GET /api/rules
func (h *RuleHandler) ListRules(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "User not authenticated",
			},
		})
		return
	}

	rules, err := h.ruleService.GetRulesByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to retrieve rules",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rules,
	})
}

// CreateRule creates a processing rule
// POST /api/rules
func (h *RuleHandler) CreateRule(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "User not authenticated",
			},
		})
		return
	}

	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request body",
				"details": err.Error(),
			},
		})
		return
	}

	rule, err := h.ruleService.CreateRule(services.CreateRuleInput{
		UserID:            userID,
		Name:              req.Name,
		Description:       req.Description,
		SenderContains:    req.SenderContains,
		SubjectContains:   req.SubjectContains,
		BodyContains:      req.BodyContains,
		AutoCreateProject: req.AutoCreateProject,
		AutoCreateContact: req.AutoCreateContact,
		MarkImportant:     req.MarkImportant,
		Priority:          req.Priority,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidRuleData) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "Invalid rule data",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to create rule",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    rule,
	})
}

// GetRule returns a specific processing rule
// GET /api/rules/:id
func (h *RuleHandler) GetRule(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "User not authenticated",
			},
		})
		return
	}

	ruleID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid rule ID",
			},
		})
		return
	}

	rule, err := h.ruleService.GetRuleByIDAndUserID(uint(ruleID), userID)
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Rule not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to retrieve rule",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rule,
	})
}

// UpdateRule updates a processing rule
// PUT /api/rules/:id
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "User not authenticated",
			},
		})
		return
	}

	ruleID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid rule ID",
			},
		})
		return
	}

	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request body",
				"details": err.Error(),
			},
		})
		return
	}

	rule, err := h.ruleService.UpdateRule(uint(ruleID), userID, services.UpdateRuleInput{
		Name:              req.Name,
		Description:       req.Description,
		SenderContains:    req.SenderContains,
		SubjectContains:   req.SubjectContains,
		BodyContains:      req.BodyContains,
		AutoCreateProject: req.AutoCreateProject,
		AutoCreateContact: req.AutoCreateContact,
		MarkImportant:     req.MarkImportant,
		Priority:          req.Priority,
		Active:            req.Active,
	})
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Rule not found",
				},
			})
			return
		}
		if errors.Is(err, services.ErrInvalidRuleData) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "Invalid rule data",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to update rule",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rule,
	})
}

// DeleteRule deletes a processing rule
// DELETE /api/rules/:id
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "User not authenticated",
			},
		})
		return
	}

	ruleID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid rule ID",
			},
		})
		return
	}

	if err := h.ruleService.DeleteRule(uint(ruleID), userID); err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Rule not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to delete rule",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Rule deleted successfully",
	})
}
