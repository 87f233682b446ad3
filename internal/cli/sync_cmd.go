package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/relay-crm/core/internal/mailclient"
	"github.com/relay-crm/core/internal/notify"
	"github.com/relay-crm/core/internal/services"
	"github.com/relay-crm/core/internal/storage"
	"github.com/spf13/cobra"
)

// syncCmd represents the sync command group
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mailbox synchronization",
	Long:  `Run mailbox syncs outside the scheduler and inspect recent runs.`,
}

// newSyncService builds the ingestion stack for one-off CLI runs.
func newSyncService() (*services.SyncService, *services.AccountService) {
	store := storage.NewStore(cfg.GetStorageDir())
	accountService := services.NewAccountService(db, cfg.GetEncryptionKey())
	ruleService := services.NewRuleService(db)
	crmService := services.NewCRMService(db, nil)
	processService := services.NewProcessService(db, crmService, ruleService, nil)

	creds := services.NewMailCredentials(accountService)
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		creds.RegisterGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret)
	}
	client := mailclient.NewIMAPClient(creds, "relay-crm")

	syncService := services.NewSyncService(db, client, accountService, processService, store, notify.NopNotifier{})
	return syncService, accountService
}

// syncRunCmd runs a sync for one account or for all active accounts
var syncRunCmd = &cobra.Command{
	Use:   "run [account-id]",
	Short: "Run a mailbox sync now",
	Long: `Run one ingestion pass. With an account ID, syncs that account;
without arguments, syncs every active account.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		syncService, accountService := newSyncService()

		if len(args) == 1 {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error: invalid account ID")
				os.Exit(1)
			}
			account, err := accountService.GetAccountByID(uint(id))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: account not found: %v\n", err)
				os.Exit(1)
			}
			run, err := syncService.SyncAccount(account.UserID, account.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: sync failed: %v\n", err)
				if run != nil {
					fmt.Fprintf(os.Stderr, "  run %s: status=%s\n", run.PublicID, run.Status)
				}
				os.Exit(1)
			}
			fmt.Printf("Account %d (%s): status=%s fetched=%d processed=%d skipped=%d attachments=%d\n",
				account.ID, account.Email, run.Status, run.Fetched, run.Processed, run.Skipped, run.AttachmentsDownloaded)
			return
		}

		accounts, err := accountService.GetActiveAccounts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list active accounts: %v\n", err)
			os.Exit(1)
		}
		if len(accounts) == 0 {
			fmt.Println("No active accounts.")
			return
		}

		failures := 0
		for _, account := range accounts {
			run, err := syncService.SyncAccount(account.UserID, account.ID)
			if err != nil {
				failures++
				fmt.Fprintf(os.Stderr, "Account %d (%s): sync failed: %v\n", account.ID, account.Email, err)
				continue
			}
			fmt.Printf("Account %d (%s): status=%s fetched=%d processed=%d skipped=%d\n",
				account.ID, account.Email, run.Status, run.Fetched, run.Processed, run.Skipped)
		}
		if failures > 0 {
			os.Exit(1)
		}
	},
}

// syncRunsCmd lists recent sync runs of an account
var syncRunsCmd = &cobra.Command{
	Use:   "runs <account-id>",
	Short: "List recent sync runs of an account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		syncService, accountService := newSyncService()

		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: invalid account ID")
			os.Exit(1)
		}
		account, err := accountService.GetAccountByID(uint(id))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: account not found: %v\n", err)
			os.Exit(1)
		}

		runs, err := syncService.GetSyncRuns(account.UserID, account.ID, 20)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list sync runs: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Println("No sync runs yet.")
			return
		}

		fmt.Printf("%-38s %-10s %-8s %-10s %-8s %s\n", "Run", "Status", "Fetched", "Processed", "Skipped", "Started")
		for _, run := range runs {
			fmt.Printf("%-38s %-10s %-8d %-10d %-8d %s\n",
				run.PublicID, run.Status, run.Fetched, run.Processed, run.Skipped,
				run.StartedAt.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncRunsCmd)
}
