// Package accounts owns the credential lifecycle: which stored account gets
// used for the next fetch, and how accounts move between states when calls
// come back classified.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wxsync/internal/wechat"
	"wxsync/internal/wxsync"
)

// LoginClient is the slice of the platform client the manager needs for the
// credential handshake.
type LoginClient interface {
	BeginLogin(ctx context.Context) (wechat.LoginSession, error)
	PollLogin(ctx context.Context, sessionID string) (*wechat.Grant, error)
}

type Manager struct {
	repo   wxsync.AccountRepo
	client LoginClient

	blacklistFor time.Duration
	now          func() time.Time
}

func NewManager(repo wxsync.AccountRepo, client LoginClient, blacklistFor time.Duration) *Manager {
	if blacklistFor <= 0 {
		blacklistFor = 24 * time.Hour
	}

	return &Manager{
		repo:         repo,
		client:       client,
		blacklistFor: blacklistFor,
		now:          time.Now,
	}
}

// BeginLogin starts a handshake with the platform.
//
// No account is created yet; that happens when the poll completes.
func (m *Manager) BeginLogin(ctx context.Context) (wechat.LoginSession, error) {
	session, err := m.client.BeginLogin(ctx)
	if err != nil {
		return wechat.LoginSession{}, fmt.Errorf("error beginning login: %w", err)
	}

	return session, nil
}

// SelectUsable picks the account the next fetch should run as.
//
// Blacklists are lifted lazily here: any account whose suspension lapsed is
// flipped back to active before selection. Returns [wxsync.ErrNoCapacity]
// when nothing is usable.
func (m *Manager) SelectUsable(ctx context.Context) (wxsync.Account, error) {
	accts, err := m.repo.AccountsByStatus(ctx, wxsync.AccountStatusActive, wxsync.AccountStatusBlacklisted)
	if err != nil {
		return wxsync.Account{}, fmt.Errorf("error listing accounts: %s", err)
	}

	chosen, lapsed := selectUsable(accts, m.now())

	for _, id := range lapsed {
		if err := m.repo.UpdateAccountStatus(ctx, id, wxsync.AccountStatusActive, nil); err != nil {
			return wxsync.Account{}, fmt.Errorf("error lifting blacklist: %s", err)
		}
		slog.Info("blacklist lapsed, account reactivated", "account_id", id)
	}

	if chosen == nil {
		return wxsync.Account{}, wxsync.ErrNoCapacity
	}

	return *chosen, nil
}

// selectUsable scans a snapshot of accounts and returns the first usable one
// plus the ids of blacklisted accounts whose suspension has lapsed.
//
// Pure so the selection rules are testable without a store; the caller
// applies the lazy-expiry writes.
func selectUsable(accts []wxsync.Account, now time.Time) (*wxsync.Account, []string) {
	var (
		chosen *wxsync.Account
		lapsed []string
	)
	for i := range accts {
		acct := accts[i]

		usable := acct.Status == wxsync.AccountStatusActive
		if acct.Status == wxsync.AccountStatusBlacklisted &&
			acct.BlacklistedUntil != nil && !acct.BlacklistedUntil.After(now) {
			lapsed = append(lapsed, acct.ID)
			acct.Status = wxsync.AccountStatusActive
			acct.BlacklistedUntil = nil
			usable = true
		}

		if usable && chosen == nil {
			chosen = &acct
		}
	}

	return chosen, lapsed
}

// ReportOutcome applies a classified call failure to the account it ran as.
//
// Unauthorized expires the account until the operator re-authenticates it; a
// rate limit suspends it for the blacklist window. Anything else leaves the
// account alone.
func (m *Manager) ReportOutcome(ctx context.Context, accountID string, callErr error) error {
	switch wechat.KindOf(callErr) {
	case wechat.KindUnauthorized:
		if err := m.repo.UpdateAccountStatus(ctx, accountID, wxsync.AccountStatusExpired, nil); err != nil {
			return fmt.Errorf("error expiring account: %s", err)
		}
		slog.Warn("account credential expired, re-authentication required", "account_id", accountID)
	case wechat.KindRateLimited:
		until := m.now().Add(m.blacklistFor)
		if err := m.repo.UpdateAccountStatus(ctx, accountID, wxsync.AccountStatusBlacklisted, &until); err != nil {
			return fmt.Errorf("error blacklisting account: %s", err)
		}
		slog.Warn("account rate limited, blacklisted", "account_id", accountID, "until", until)
	}

	return nil
}
