package services

import (
	"log"
	"sync"
	"time"

	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/mailclient"
	"gorm.io/gorm"
)

// SyncScheduler periodically fans out sync runs over all active accounts.
// Each account is guarded by its own advisory lock, so a manually
// triggered sync and the scheduler never run the same account twice
// concurrently.
type SyncScheduler struct {
	db           *gorm.DB
	syncService  *SyncService
	logService   *LogService
	interval     time.Duration
	stopChan     chan struct{}
	running      bool
	mu           sync.Mutex
	syncing      sync.Mutex // guards against overlapping cycles
	accountLocks sync.Map   // per-account advisory locks
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(db *gorm.DB, syncService *SyncService, logService *LogService, interval time.Duration) *SyncScheduler {
	return &SyncScheduler{
		db:          db,
		syncService: syncService,
		logService:  logService,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the periodic sync loop.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("[SyncScheduler] Starting with interval: %v", s.interval)

	go func() {
		// Give the server a moment to come up before the first cycle.
		select {
		case <-time.After(10 * time.Second):
			s.syncAllAccounts()
		case <-s.stopChan:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.syncAllAccounts()
			case <-s.stopChan:
				log.Println("[SyncScheduler] Stopping")
				return
			}
		}
	}()
}

// Stop stops the periodic sync loop.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.running = false
}

// IsAccountSyncing reports whether a sync currently holds the account lock.
func (s *SyncScheduler) IsAccountSyncing(accountID uint) bool {
	_, loaded := s.accountLocks.Load(accountID)
	return loaded
}

// TryLockAccount attempts to take the account's advisory lock. Manual sync
// triggers use this to avoid colliding with the scheduler.
func (s *SyncScheduler) TryLockAccount(accountID uint) bool {
	_, loaded := s.accountLocks.LoadOrStore(accountID, true)
	return !loaded
}

// UnlockAccount releases the account's advisory lock.
func (s *SyncScheduler) UnlockAccount(accountID uint) {
	s.accountLocks.Delete(accountID)
}

// syncAllAccounts runs one cycle over every active account whose interval
// has elapsed. If the previous cycle is still running, this one is skipped.
func (s *SyncScheduler) syncAllAccounts() {
	if !s.syncing.TryLock() {
		log.Println("[SyncScheduler] Previous cycle still running, skipping")
		return
	}
	defer s.syncing.Unlock()

	var accounts []models.MailAccount
	if err := s.db.Where("active = ?", true).Find(&accounts).Error; err != nil {
		log.Printf("[SyncScheduler] Failed to get accounts: %v", err)
		return
	}
	if len(accounts) == 0 {
		return
	}

	now := time.Now()
	var wg sync.WaitGroup
	for _, account := range accounts {
		if !account.SyncDue(now) {
			continue
		}
		if !s.TryLockAccount(account.ID) {
			log.Printf("[SyncScheduler] Account %d (%s) already syncing, skipping", account.ID, account.Email)
			continue
		}

		wg.Add(1)
		go func(acc models.MailAccount) {
			defer wg.Done()
			defer s.UnlockAccount(acc.ID)

			s.syncOneAccount(acc)
		}(account)
	}
	wg.Wait()
}

// syncOneAccount runs one account with retry and exponential backoff.
// Authentication failures are not retried: backing off does not fix bad
// credentials, it only risks locking the account out.
func (s *SyncScheduler) syncOneAccount(account models.MailAccount) {
	const maxRetries = 2
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("[SyncScheduler] Account %d retry %d/%d after %v", account.ID, attempt, maxRetries, backoff)

			select {
			case <-time.After(backoff):
			case <-s.stopChan:
				return
			}
		}

		run, err := s.syncService.SyncAccount(account.UserID, account.ID)
		if err == nil {
			if run.Processed > 0 {
				s.logService.LogInfo(account.UserID, models.LogModuleSync, "auto_sync", "Auto sync completed", map[string]interface{}{
					"account_id": account.ID,
					"processed":  run.Processed,
					"skipped":    run.Skipped,
				})
			}
			return
		}

		lastErr = err
		log.Printf("[SyncScheduler] Account %d (%s) sync attempt %d failed: %v", account.ID, account.Email, attempt+1, err)

		if mailclient.IsAuthError(err) {
			break
		}
	}

	s.logService.LogWarn(account.UserID, models.LogModuleSync, "auto_sync", "Auto sync failed", map[string]interface{}{
		"account_id": account.ID,
		"error":      lastErr.Error(),
	})
}
