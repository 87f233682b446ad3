package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/relay-crm/core/internal/api/middleware"
	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/services"
)

// AccountHandler handles mail account related requests
type AccountHandler struct {
	accountService *services.AccountService
	syncService    *services.SyncService
	syncScheduler  *services.SyncScheduler
	logService     *services.LogService
}

// NewAccountHandler creates a new AccountHandler instance
func NewAccountHandler(accountService *services.AccountService, syncService *services.SyncService, syncScheduler *services.SyncScheduler, logService *services.LogService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		syncService:    syncService,
		syncScheduler:  syncScheduler,
		logService:     logService,
	}
}

// CreateAccountRequest represents the request to create a mail account
type CreateAccountRequest struct {
	Email               string `json:"email" binding:"required,email"`
	DisplayName         string `json:"display_name"`
	Server              string `json:"server" binding:"required"`
	Port                int    `json:"port"`
	Username            string `json:"username" binding:"required"`
	Password            string `json:"password" binding:"required"`
	UseSSL              bool   `json:"use_ssl"`
	TimeoutSeconds      int    `json:"timeout_seconds"`
	SyncIntervalMinutes int    `json:"sync_interval_minutes"`
}

// UpdateAccountRequest represents the request to update a mail account
type UpdateAccountRequest struct {
	DisplayName         string `json:"display_name"`
	Server              string `json:"server"`
	Port                int    `json:"port"`
	Username            string `json:"username"`
	Password            string `json:"password"`
	UseSSL              *bool  `json:"use_ssl"`
	TimeoutSeconds      int    `json:"timeout_seconds"`
	SyncIntervalMinutes int    `json:"sync_interval_minutes"`
}

// AccountResponse represents the response for a mail account
type AccountResponse struct {
	ID                  uint   `json:"id"`
	Email               string `json:"email"`
	DisplayName         string `json:"display_name"`
	Server              string `json:"server"`
	Port                int    `json:"port"`
	Username            string `json:"username"`
	UseSSL              bool   `json:"use_ssl"`
	AuthType            string `json:"auth_type"`
	Active              bool   `json:"active"`
	SyncIntervalMinutes int    `json:"sync_interval_minutes"`
	LastSync            int64  `json:"last_sync"`
	TotalProcessed      uint   `json:"total_processed"`
	LastError           string `json:"last_error,omitempty"`
	CreatedAt           int64  `json:"created_at"`
}

// toAccountResponse converts a MailAccount model to AccountResponse
func toAccountResponse(account *models.MailAccount) AccountResponse {
	return AccountResponse{
		ID:                  account.ID,
		Email:               account.Email,
		DisplayName:         account.DisplayName,
		Server:              account.Server,
		Port:                account.Port,
		Username:            account.Username,
		UseSSL:              account.UseSSL,
		AuthType:            string(account.AuthType),
		Active:              account.Active,
		SyncIntervalMinutes: account.SyncIntervalMinutes,
		LastSync:            account.LastSync.Unix(),
		TotalProcessed:      account.TotalProcessed,
		LastError:           account.LastError,
		CreatedAt:           account.CreatedAt.Unix(),
	}
}

// ListAccounts returns all mail accounts for the current user
// GET /api/accounts
func (h *AccountHandler) ListAccounts(c *gin.Context) {
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

	accounts, err := h.accountService.GetAccountsByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to retrieve accounts",
			},
		})
		return
	}

	var response []AccountResponse
	for i := range accounts {
		response = append(response, toAccountResponse(&accounts[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    response,
	})
}

// CreateAccount creates a new mail account
// POST /api/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
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

	var req CreateAccountRequest
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

	input := services.CreateAccountInput{
		UserID:              userID,
		Email:               req.Email,
		DisplayName:         req.DisplayName,
		Server:              req.Server,
		Port:                req.Port,
		Username:            req.Username,
		Password:            req.Password,
		UseSSL:              req.UseSSL,
		TimeoutSeconds:      req.TimeoutSeconds,
		SyncIntervalMinutes: req.SyncIntervalMinutes,
	}

	account, err := h.accountService.CreateAccount(input)
	if err != nil {
		if errors.Is(err, services.ErrAccountAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "CONFLICT",
					"message": "Mail account already exists",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to create account",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    toAccountResponse(account),
	})
}

// GetAccount returns a specific mail account
// GET /api/accounts/:id
func (h *AccountHandler) GetAccount(c *gin.Context) {
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

	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid account ID",
			},
		})
		return
	}

	account, err := h.accountService.GetAccountByIDAndUserID(uint(accountID), userID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Account not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to retrieve account",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toAccountResponse(account),
	})
}

// UpdateAccount updates a mail account
// PUT /api/accounts/:id
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
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

	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid account ID",
			},
		})
		return
	}

	var req UpdateAccountRequest
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

	input := services.UpdateAccountInput{
		DisplayName:         req.DisplayName,
		Server:              req.Server,
		Port:                req.Port,
		Username:            req.Username,
		Password:            req.Password,
		UseSSL:              req.UseSSL,
		TimeoutSeconds:      req.TimeoutSeconds,
		SyncIntervalMinutes: req.SyncIntervalMinutes,
	}

	account, err := h.accountService.UpdateAccount(uint(accountID), userID, input)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Account not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to update account",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toAccountResponse(account),
	})
}

// DeleteAccount deletes a mail account
// DELETE /api/accounts/:id
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
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

	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid account ID",
			},
		})
		return
	}

	err = h.accountService.DeleteAccount(uint(accountID), userID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Account not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to delete account",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Account deleted successfully",
	})
}

// VerifyConnection checks the server and credentials of a saved account
// POST /api/accounts/:id/verify
func (h *AccountHandler) VerifyConnection(c *gin.Context) {
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

	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid account ID",
			},
		})
		return
	}

	if err := h.syncService.VerifyConnection(userID, uint(accountID)); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Account not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"connected": false,
				"error":     err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"connected": true,
		},
	})
}

// EnableAccount enables a mail account
// PUT /api/accounts/:id/enable
func (h *AccountHandler) EnableAccount(c *gin.Context) {
	h.setActive(c, true)
}

// DisableAccount disables a mail account
// PUT /api/accounts/:id/disable
func (h *AccountHandler) DisableAccount(c *gin.Context) {
	h.setActive(c, false)
}

func (h *AccountHandler) setActive(c *gin.Context, active bool) {
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

	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid account ID",
			},
		})
		return
	}

	account, err := h.accountService.SetAccountActive(uint(accountID), userID, active)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Account not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to update account status",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toAccountResponse(account),
	})
}

// TriggerSync starts a sync run for the account. The per-account advisory
// lock keeps a manual trigger from colliding with the scheduler.
// POST /api/accounts/:id/sync
func (h *AccountHandler) TriggerSync(c *gin.Context) {
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

	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid account ID",
			},
		})
		return
	}

	if !h.syncScheduler.TryLockAccount(uint(accountID)) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SYNC_IN_PROGRESS",
				"message": "Account is already syncing",
			},
		})
		return
	}
	defer h.syncScheduler.UnlockAccount(uint(accountID))

	run, err := h.syncService.SyncAccount(userID, uint(accountID))
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Account not found",
				},
			})
			return
		}
		if errors.Is(err, services.ErrAccountInactive) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ACCOUNT_INACTIVE",
					"message": "Account is disabled",
				},
			})
			return
		}
		// Connection failures still produce an audit record.
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SYNC_FAILED",
				"message": "Sync failed",
				"details": err.Error(),
			},
			"data": run,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    run,
	})
}

// ListSyncRuns returns the account's recent sync runs, newest first
// GET /api/accounts/:id/sync-runs
func (h *AccountHandler) ListSyncRuns(c *gin.Context) {
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

	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid account ID",
			},
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.syncService.GetSyncRuns(userID, uint(accountID), limit)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Account not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to retrieve sync runs",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    runs,
	})
}
