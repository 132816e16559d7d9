package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"wxsync/internal/wxsync"
)

const feedNamespace = "-fd"

// EnsureFeed inserts the feed, keyed by its external feed id.
//
// Subscribing to a feed that is already followed returns the existing row
// unchanged.
func (r Repo) EnsureFeed(ctx context.Context, feed wxsync.Feed) (wxsync.Feed, error) {
	const q = `INSERT INTO feeds (id, external_feed_id, title, description, owner_account_id)
	VALUES (:id, :external_feed_id, :title, :description, :owner_account_id)
	ON CONFLICT (external_feed_id) DO NOTHING;`

	feed.ID = uuid.NewString() + feedNamespace
	if _, err := r.db.NamedExecContext(ctx, q, feed); err != nil {
		return wxsync.Feed{}, fmt.Errorf("error inserting feed: %s", err)
	}

	return r.FeedByExternalID(ctx, feed.ExternalFeedID)
}

func (r Repo) Feed(ctx context.Context, id string) (wxsync.Feed, error) {
	const q = `SELECT * FROM feeds WHERE id = ?;`

	var feed wxsync.Feed
	err := r.db.GetContext(ctx, &feed, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return wxsync.Feed{}, wxsync.ErrNotFound
	}
	if err != nil {
		return wxsync.Feed{}, fmt.Errorf("error fetching feed: %s", err)
	}

	return feed, nil
}

func (r Repo) FeedByExternalID(ctx context.Context, externalFeedID string) (wxsync.Feed, error) {
	const q = `SELECT * FROM feeds WHERE external_feed_id = ?;`

	var feed wxsync.Feed
	err := r.db.GetContext(ctx, &feed, q, externalFeedID)
	if errors.Is(err, sql.ErrNoRows) {
		return wxsync.Feed{}, wxsync.ErrNotFound
	}
	if err != nil {
		return wxsync.Feed{}, fmt.Errorf("error fetching feed: %s", err)
	}

	return feed, nil
}

// AllFeeds retrieves _all_ feeds from the database.
func (r Repo) AllFeeds(ctx context.Context) ([]wxsync.Feed, error) {
	const q = `SELECT * FROM feeds ORDER BY created_at;`

	var feeds []wxsync.Feed
	if err := r.db.SelectContext(ctx, &feeds, q); err != nil {
		return nil, fmt.Errorf("error selecting all feeds: %s", err)
	}

	return feeds, nil
}

// FeedsNeedingSync returns feeds that have never been synced first, then
// feeds whose last sync is before the cutoff, stalest first.
func (r Repo) FeedsNeedingSync(ctx context.Context, before time.Time) ([]wxsync.Feed, error) {
	const q = `SELECT * FROM feeds
	WHERE last_sync_at IS NULL OR last_sync_at < ?
	ORDER BY last_sync_at IS NOT NULL, last_sync_at;`

	var feeds []wxsync.Feed
	if err := r.db.SelectContext(ctx, &feeds, q, before); err != nil {
		return nil, fmt.Errorf("error selecting feeds needing sync: %s", err)
	}

	return feeds, nil
}

func (r Repo) UpdateFeedLastSync(ctx context.Context, id string, at time.Time) error {
	query, args, err := sq.Update("feeds").
		Set("last_sync_at", at).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error updating feed last sync: %s", err)
	}

	return nil
}

// DeleteFeed removes the feed and its articles in one transaction.
//
// The articles are deleted explicitly: sqlite only honors the schema's ON
// DELETE CASCADE when the connection has foreign keys enabled, and this
// must hold regardless of the DSN.
func (r Repo) DeleteFeed(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %s", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE feed_id = ?;`, id); err != nil {
		return fmt.Errorf("error deleting feed articles: %s", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("error deleting feed: %s", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error counting deleted feeds: %s", err)
	}
	if n == 0 {
		return wxsync.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing feed delete: %s", err)
	}

	return nil
}
