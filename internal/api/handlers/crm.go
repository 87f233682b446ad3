package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/relay-crm/core/internal/api/middleware"
	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/rbac"
	"github.com/relay-crm/core/internal/services"
)

// CRMHandler handles company, project and contact requests
type CRMHandler struct {
	crmService  *services.CRMService
	userService *services.UserService
	logService  *services.LogService
}

// NewCRMHandler creates a new CRMHandler instance
func NewCRMHandler(crmService *services.CRMService, userService *services.UserService, logService *services.LogService) *CRMHandler {
	return &CRMHandler{
		crmService:  crmService,
		userService: userService,
		logService:  logService,
	}
}

// CreateCompanyRequest represents the request to create a company
type CreateCompanyRequest struct {
	Name    string `json:"name" binding:"required"`
	TaxID   string `json:"tax_id"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Website string `json:"website"`
	Address string `json:"address"`
}

// SetStateRequest represents a lifecycle state transition request
type SetStateRequest struct {
	State string `json:"state" binding:"required"`
}

// currentUser resolves the authenticated user record, writing the error
// response itself when that fails.
func (h *CRMHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "User not authenticated",
			},
		})
		return nil, false
	}
	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "User not found",
			},
		})
		return nil, false
	}
	return user, true
}

func parseIDParam(c *gin.Context, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid " + what + " ID",
			},
		})
		return 0, false
	}
	return uint(id), true
}

// writeCRMError maps service errors to HTTP responses shared by the
// company, project and contact endpoints.
func writeCRMError(c *gin.Context, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, services.ErrCompanyNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrContactNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": notFoundMsg,
			},
		})
	case errors.Is(err, rbac.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Permission denied",
			},
		})
	case errors.Is(err, services.ErrInvalidLifecycleState):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid lifecycle state",
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Operation failed",
			},
		})
	}
}

// ===== Companies =====

// ListCompanies returns the user's companies
// GET /api/companies?state=active|archived
func (h *CRMHandler) ListCompanies(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	companies, err := h.crmService.ListCompanies(user, models.LifecycleState(c.Query("state")))
	if err != nil {
		writeCRMError(c, err, "Company not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    companies,
	})
}

// CreateCompany creates a company
// POST /api/companies
func (h *CRMHandler) CreateCompany(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req CreateCompanyRequest
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

	company, err := h.crmService.CreateCompany(user, services.CreateCompanyInput{
		Name:    req.Name,
		TaxID:   req.TaxID,
		Phone:   req.Phone,
		Email:   req.Email,
		Website: req.Website,
		Address: req.Address,
	})
	if err != nil {
		if errors.Is(err, services.ErrCompanyAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "CONFLICT",
					"message": "A company with this tax ID already exists",
				},
			})
			return
		}
		writeCRMError(c, err, "Company not found")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    company,
	})
}

// GetCompany returns a specific company
// GET /api/companies/:id
func (h *CRMHandler) GetCompany(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "company")
	if !ok {
		return
	}

	company, err := h.crmService.GetCompany(user, id)
	if err != nil {
		writeCRMError(c, err, "Company not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    company,
	})
}

// SetCompanyState archives or reactivates a company
// PUT /api/companies/:id/state
func (h *CRMHandler) SetCompanyState(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "company")
	if !ok {
		return
	}

	var req SetStateRequest
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

	company, err := h.crmService.SetCompanyState(user, id, models.LifecycleState(req.State))
	if err != nil {
		writeCRMError(c, err, "Company not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    company,
	})
}

// ===== Projects =====

// ListProjects returns the user's projects
// GET /api/projects?state=active|archived
func (h *CRMHandler) ListProjects(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	projects, err := h.crmService.ListProjects(user, models.LifecycleState(c.Query("state")))
	if err != nil {
		writeCRMError(c, err, "Project not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    projects,
	})
}

// GetProject returns a specific project
// GET /api/projects/:id
func (h *CRMHandler) GetProject(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "project")
	if !ok {
		return
	}

	project, err := h.crmService.GetProject(user, id)
	if err != nil {
		writeCRMError(c, err, "Project not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    project,
	})
}

// SetProjectState archives or reactivates a project
// PUT /api/projects/:id/state
func (h *CRMHandler) SetProjectState(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "project")
	if !ok {
		return
	}

	var req SetStateRequest
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

	project, err := h.crmService.SetProjectState(user, id, models.LifecycleState(req.State))
	if err != nil {
		writeCRMError(c, err, "Project not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    project,
	})
}

// ===== Contacts =====

// ListContacts returns the user's contacts
// GET /api/contacts?state=active|archived
func (h *CRMHandler) ListContacts(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	contacts, err := h.crmService.ListContacts(user, models.LifecycleState(c.Query("state")))
	if err != nil {
		writeCRMError(c, err, "Contact not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    contacts,
	})
}

// GetContact returns a specific contact
// GET /api/contacts/:id
func (h *CRMHandler) GetContact(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "contact")
	if !ok {
		return
	}

	contact, err := h.crmService.GetContact(user, id)
	if err != nil {
		writeCRMError(c, err, "Contact not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    contact,
	})
}

// SetContactState archives or reactivates a contact
// PUT /api/contacts/:id/state
func (h *CRMHandler) SetContactState(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "contact")
	if !ok {
		return
	}

	var req SetStateRequest
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

	contact, err := h.crmService.SetContactState(user, id, models.LifecycleState(req.State))
	if err != nil {
		writeCRMError(c, err, "Contact not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    contact,
	})
}
