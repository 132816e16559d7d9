package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"wxsync/internal/wxsync"
)

// Poller drives the recurring completion check for one login session.
//
// The session token on the platform is single-use: a late poll after the
// handshake has completed comes back as a server error. The completed flag
// is therefore checked both at tick entry and again right before the network
// call, and any tick that loses the race is dropped silently.
type Poller struct {
	manager   *Manager
	sessionID string
	interval  time.Duration
	maxErrs   int

	completed atomic.Bool
	errs      atomic.Int32
	account   atomic.Pointer[wxsync.Account]
}

func (m *Manager) NewPoller(sessionID string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &Poller{
		manager:   m,
		sessionID: sessionID,
		interval:  interval,
		maxErrs:   3,
	}
}

// Run polls until the handshake completes, the error budget is spent, or the
// context is canceled. On success the created account is returned.
func (p *Poller) Run(ctx context.Context) (wxsync.Account, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return wxsync.Account{}, ctx.Err()
		case <-ticker.C:
		}

		done, err := p.tick(ctx)
		if err != nil {
			slog.Warn("login poll failed", "session_id", p.sessionID, "error", err)
			if int(p.errs.Add(1)) >= p.maxErrs {
				return wxsync.Account{}, fmt.Errorf("login poll gave up after %d consecutive errors: %w", p.maxErrs, err)
			}
			continue
		}
		p.errs.Store(0)

		if done {
			if acct := p.account.Load(); acct != nil {
				return *acct, nil
			}
			// Another tick completed the handshake.
			return wxsync.Account{}, nil
		}
	}
}

// tick performs one completion check.
//
// Safe to call concurrently: after the first success every call is a no-op.
func (p *Poller) tick(ctx context.Context) (bool, error) {
	if p.completed.Load() {
		slog.Debug("login already completed, skipping poll", "session_id", p.sessionID)
		return true, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	// Check once more right before going to the wire, in case another tick
	// finished while this one was getting scheduled.
	if p.completed.Load() {
		slog.Debug("login already completed, skipping poll", "session_id", p.sessionID)
		return true, nil
	}

	grant, err := p.manager.client.PollLogin(pollCtx, p.sessionID)

	// A tick that was in flight when the winning one landed sees a used
	// session; whatever it got back is meaningless now.
	if p.completed.Load() {
		slog.Debug("login completed while poll was in flight, dropping result", "session_id", p.sessionID, "error", err)
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("error polling login: %w", err)
	}
	if grant == nil {
		return false, nil
	}

	acct, err := p.manager.repo.EnsureAccount(ctx, wxsync.Account{
		DisplayName: grant.DisplayName,
		ExternalID:  grant.Credential.ExternalID,
		Token:       grant.Credential.Token,
		Status:      wxsync.AccountStatusActive,
	})
	if err != nil {
		return false, fmt.Errorf("error storing account: %s", err)
	}

	p.account.Store(&acct)
	p.completed.Store(true)
	slog.Info("login completed", "session_id", p.sessionID, "account_id", acct.ID)

	return true, nil
}

// Completed reports whether the handshake has finished.
func (p *Poller) Completed() bool {
	return p.completed.Load()
}

// Account returns the account created by a completed handshake, or nil.
func (p *Poller) Account() *wxsync.Account {
	return p.account.Load()
}
