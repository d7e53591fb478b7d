package drift

import (
	"context"
	"fmt"
	"time"

	"driftbook/logger"
)

// Universe holds the most recently fetched set of user accounts, the pool
// of potential order owners. It is owned by the provider and mutated only
// from the refresh cycle; no internal locking is needed.
type Universe struct {
	client    *Client
	programID string
	log       *logger.Log

	users       []UserAccount
	lastRefresh time.Time
}

func NewUniverse(client *Client, programID string) *Universe {
	return &Universe{
		client:    client,
		programID: programID,
		log:       logger.GetLogger(),
	}
}

// Refresh bulk-fetches all user accounts of the program. Idempotent: a
// repeat call fully replaces the previous set. Individual accounts that
// fail to decode are skipped, not fatal.
func (u *Universe) Refresh(ctx context.Context) error {
	log := u.log.WithComponent("user_universe").WithFields(logger.Fields{"operation": "refresh"})

	start := time.Now()
	accounts, err := u.client.GetProgramAccounts(ctx, u.programID, userAccountSize)
	if err != nil {
		return fmt.Errorf("fetch user accounts: %w", err)
	}

	users := make([]UserAccount, 0, len(accounts))
	skipped := 0
	for _, acct := range accounts {
		user, err := decodeUser(acct.Data)
		if err != nil {
			skipped++
			continue
		}
		users = append(users, user)
	}

	u.users = users
	u.lastRefresh = time.Now()

	logger.LogDataFlowEntry(log, "ledger_rpc", "user_universe", len(users), "user_accounts")
	logger.LogPerformanceEntry(log, "user_universe", "refresh_users", time.Since(start), logger.Fields{
		"users":   len(users),
		"skipped": skipped,
	})
	return nil
}

// Users returns the current account set. The slice must not be mutated.
func (u *Universe) Users() []UserAccount {
	return u.users
}

// LastRefresh reports when the universe was last fetched, zero before the
// first successful refresh.
func (u *Universe) LastRefresh() time.Time {
	return u.lastRefresh
}
