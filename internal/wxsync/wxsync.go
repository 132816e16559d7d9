// Package wxsync holds the domain types shared between the sync daemon's
// components: accounts, followed feeds, and the articles pulled from them.
package wxsync

import (
	"errors"
	"time"
)

var (
	ErrConflict   = errors.New("resource already exists")
	ErrNotFound   = errors.New("resource not found")
	ErrNoCapacity = errors.New("no usable account available")
)

// AccountStatus is the lifecycle state of a stored credential.
type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusBlacklisted AccountStatus = "blacklisted"
	AccountStatusExpired     AccountStatus = "expired"
	AccountStatusDisabled    AccountStatus = "disabled"
)

type (
	// Account is a WeChat identity used to authenticate outbound calls.
	//
	// blacklisted_until is set if and only if the status is blacklisted.
	Account struct {
		ID               string        `db:"id"`
		DisplayName      string        `db:"display_name"`
		ExternalID       string        `db:"external_id"`
		Token            string        `db:"token"`
		Status           AccountStatus `db:"status"`
		BlacklistedUntil *time.Time    `db:"blacklisted_until"`
		CreatedAt        time.Time     `db:"created_at"`
		UpdatedAt        time.Time     `db:"updated_at"`
	}

	// Feed is a followed official account.
	Feed struct {
		ID             string     `db:"id"`
		ExternalFeedID string     `db:"external_feed_id"`
		Title          string     `db:"title"`
		Description    string     `db:"description"`
		OwnerAccountID string     `db:"owner_account_id"`
		LastSyncAt     *time.Time `db:"last_sync_at"`
		CreatedAt      time.Time  `db:"created_at"`
		UpdatedAt      time.Time  `db:"updated_at"`
	}

	// Article is one published post pulled from a feed.
	//
	// NoteRef is the sole link to the generated markdown note and is cleared
	// when the note is removed.
	Article struct {
		ID          string    `db:"id"`
		FeedID      string    `db:"feed_id"`
		Title       string    `db:"title"`
		Content     string    `db:"content"`
		RawContent  string    `db:"raw_content"`
		SourceURL   string    `db:"source_url"`
		PublishedAt time.Time `db:"published_at"`
		Synced      bool      `db:"synced"`
		NoteRef     *string   `db:"note_ref"`
		CreatedAt   time.Time `db:"created_at"`
	}
)
