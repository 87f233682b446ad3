package services

import (
	"sync"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T) (*SyncScheduler, func()) {
	db, cleanup := setupTestDB(t)
	accountService := NewAccountService(db, testEncryptionKey)
	crmService := NewCRMService(db, nil)
	ruleService := NewRuleService(db)
	processService := NewProcessService(db, crmService, ruleService, nil)
	syncService := NewSyncService(db, &fakeClient{session: &fakeSession{}}, accountService, processService, nil, nil)
	return NewSyncScheduler(db, syncService, NewLogService(db), time.Minute), cleanup
}

func TestTryLockAccount_Exclusive(t *testing.T) {
	scheduler, cleanup := newTestScheduler(t)
	defer cleanup()

	if !scheduler.TryLockAccount(1) {
		t.Fatal("first lock attempt failed")
	}
	if scheduler.TryLockAccount(1) {
		t.Error("second lock attempt on held lock succeeded")
	}
	if !scheduler.IsAccountSyncing(1) {
		t.Error("held lock not reported as syncing")
	}

	// A different account is unaffected.
	if !scheduler.TryLockAccount(2) {
		t.Error("lock on a different account failed")
	}

	scheduler.UnlockAccount(1)
	if scheduler.IsAccountSyncing(1) {
		t.Error("released lock still reported as syncing")
	}
	if !scheduler.TryLockAccount(1) {
		t.Error("relock after release failed")
	}
}

func TestTryLockAccount_SingleWinnerUnderContention(t *testing.T) {
	scheduler, cleanup := newTestScheduler(t)
	defer cleanup()

	const contenders = 16
	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if scheduler.TryLockAccount(42) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("lock winners = %d, want exactly 1", wins)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	scheduler, cleanup := newTestScheduler(t)
	defer cleanup()

	scheduler.Start()
	// Starting twice must not panic or double the loop.
	scheduler.Start()

	scheduler.Stop()
	// Stopping twice must not close the channel again.
	scheduler.Stop()
}
