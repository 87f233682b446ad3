package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/relay-crm/core/internal/api/handlers"
	"github.com/relay-crm/core/internal/api/middleware"
	"github.com/relay-crm/core/internal/config"
	"github.com/relay-crm/core/internal/mailclient"
	"github.com/relay-crm/core/internal/notify"
	"github.com/relay-crm/core/internal/services"
	"github.com/relay-crm/core/internal/storage"
	"gorm.io/gorm"
)

// SetupRouter initializes the Gin router with all routes configured and
// starts the background sync scheduler.
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *middleware.AuthManager, *services.SyncScheduler, error) {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authManager, err := middleware.NewAuthManager(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	store := storage.NewStore(cfg.GetStorageDir())

	// Services
	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	userService := services.NewUserService(db, store)
	accountService := services.NewAccountService(db, cfg.GetEncryptionKey())
	ruleService := services.NewRuleService(db)
	crmService := services.NewCRMService(db, nil)
	notifier := notify.NewLogNotifier(logService)
	processService := services.NewProcessService(db, crmService, ruleService, notifier)
	messageService := services.NewMessageService(db, store)

	creds := services.NewMailCredentials(accountService)
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		creds.RegisterGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret)
	}
	mailClient := mailclient.NewIMAPClient(creds, "relay-crm")

	syncService := services.NewSyncService(db, mailClient, accountService, processService, store, notifier)

	syncScheduler := services.NewSyncScheduler(db, syncService, logService, time.Duration(cfg.SyncIntervalMin)*time.Minute)
	syncScheduler.Start()

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, authManager.JWTManager, logService)
	userHandler := handlers.NewUserHandler(userService, logService)
	accountHandler := handlers.NewAccountHandler(accountService, syncService, syncScheduler, logService)
	messageHandler := handlers.NewMessageHandler(messageService, processService, logService)
	ruleHandler := handlers.NewRuleHandler(ruleService, logService)
	crmHandler := handlers.NewCRMHandler(crmService, userService, logService)
	logHandler := handlers.NewLogHandler(logService)
	oauthHandler := handlers.NewOAuthHandler(accountService, cfg)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.Use(middleware.APIKeyMiddleware(authManager.APIKeyManager))

		// Auth routes (API key required, but no JWT required)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}

		// OAuth callback carries no JWT, only the state token
		oauth := api.Group("/oauth")
		{
			oauth.GET("/google/callback", oauthHandler.GoogleCallback)
		}

		// Protected routes (API key + JWT required)
		protected := api.Group("")
		protected.Use(middleware.JWTMiddleware(authManager.JWTManager))
		{
			protected.POST("/auth/refresh", authHandler.RefreshToken)
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/auth/me", authHandler.GetCurrentUser)

			userGroup := protected.Group("/user")
			{
				userGroup.GET("/profile", userHandler.GetProfile)
				userGroup.PUT("/profile", userHandler.UpdateProfile)
				userGroup.PUT("/password", userHandler.ChangePassword)
			}

			accounts := protected.Group("/accounts")
			{
				accounts.GET("", accountHandler.ListAccounts)
				accounts.POST("", accountHandler.CreateAccount)
				accounts.GET("/:id", accountHandler.GetAccount)
				accounts.PUT("/:id", accountHandler.UpdateAccount)
				accounts.DELETE("/:id", accountHandler.DeleteAccount)
				accounts.POST("/:id/verify", accountHandler.VerifyConnection)
				accounts.PUT("/:id/enable", accountHandler.EnableAccount)
				accounts.PUT("/:id/disable", accountHandler.DisableAccount)
				accounts.POST("/:id/sync", accountHandler.TriggerSync)
				accounts.GET("/:id/sync-runs", accountHandler.ListSyncRuns)
			}

			messages := protected.Group("/messages")
			{
				messages.GET("", messageHandler.ListMessages)
				messages.GET("/:id", messageHandler.GetMessage)
				messages.PUT("/:id/read", messageHandler.MarkAsRead)
				messages.POST("/:id/reprocess", messageHandler.ReprocessMessage)
				messages.GET("/:id/attachments", messageHandler.ListAttachments)
			}
			protected.GET("/attachments/:id/download", messageHandler.DownloadAttachment)

			rules := protected.Group("/rules")
			{
				rules.GET("", ruleHandler.ListRules)
				rules.POST("", ruleHandler.CreateRule)
				rules.GET("/:id", ruleHandler.GetRule)
				rules.PUT("/:id", ruleHandler.UpdateRule)
				rules.DELETE("/:id", ruleHandler.DeleteRule)
			}

			companies := protected.Group("/companies")
			{
				companies.GET("", crmHandler.ListCompanies)
				companies.POST("", crmHandler.CreateCompany)
				companies.GET("/:id", crmHandler.GetCompany)
				companies.PUT("/:id/state", crmHandler.SetCompanyState)
			}

			projects := protected.Group("/projects")
			{
				projects.GET("", crmHandler.ListProjects)
				projects.GET("/:id", crmHandler.GetProject)
				projects.PUT("/:id/state", crmHandler.SetProjectState)
			}

			contacts := protected.Group("/contacts")
			{
				contacts.GET("", crmHandler.ListContacts)
				contacts.GET("/:id", crmHandler.GetContact)
				contacts.PUT("/:id/state", crmHandler.SetContactState)
			}

			protected.GET("/logs", logHandler.QueryLogs)

			oauthProtected := protected.Group("/oauth")
			{
				oauthProtected.GET("/config", oauthHandler.GetOAuthConfig)
				oauthProtected.GET("/google/auth", oauthHandler.GetGoogleAuthURL)
			}
		}
	}

	return router, authManager, syncScheduler, nil
}
