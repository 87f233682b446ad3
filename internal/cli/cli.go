package cli

import (
	"fmt"
	"os"

	"github.com/relay-crm/core/internal/api/middleware"
	"github.com/relay-crm/core/internal/config"
	"github.com/relay-crm/core/internal/services"
	"github.com/relay-crm/core/internal/storage"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db            *gorm.DB
	cfg           *config.Config
	apiKeyManager *middleware.APIKeyManager
	userService   *services.UserService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "relay-crm",
	Short: "Relay CRM mail ingestion backend",
	Long: `Relay CRM ingests mailbox traffic, extracts tax IDs and contacts,
and links messages to companies, projects and contacts.

This command line tool provides:
  - Key management: show and reset the API key
  - User management: create users, list users, reset passwords
  - Sync: run a one-off mailbox sync outside the scheduler

Examples:
  relay-crm key show           # show the current API key
  relay-crm key reset          # reset the API key
  relay-crm user create        # create a new user
  relay-crm user list          # list all users
  relay-crm user reset-pwd     # reset a user's password
  relay-crm sync run 3         # sync mail account 3 now`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	var err error
	apiKeyManager, err = middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize API key manager: %v\n", err)
		os.Exit(1)
	}

	userService = services.NewUserService(db, storage.NewStore(cfg.GetStorageDir()))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(syncCmd)
}
