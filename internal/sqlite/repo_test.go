package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"wxsync/internal/migrations"
	"wxsync/internal/wxsync"
)

func newTestRepo(t *testing.T) Repo {
	t.Helper()

	dbx, err := sqlx.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	// In-memory databases are per connection.
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { dbx.Close() })

	require.NoError(t, migrations.Run(dbx))

	return New(dbx)
}

func seedAccount(t *testing.T, r Repo) wxsync.Account {
	t.Helper()

	acct, err := r.EnsureAccount(context.Background(), wxsync.Account{
		DisplayName: "ops",
		ExternalID:  "uin-1",
		Token:       "tok-1",
	})
	require.NoError(t, err)
	return acct
}

func seedFeed(t *testing.T, r Repo, externalID, ownerID string) wxsync.Feed {
	t.Helper()

	feed, err := r.EnsureFeed(context.Background(), wxsync.Feed{
		ExternalFeedID: externalID,
		Title:          "Tech Weekly",
		OwnerAccountID: ownerID,
	})
	require.NoError(t, err)
	return feed
}

func TestEnsureAccountIdempotent(t *testing.T) {
	r := newTestRepo(t)

	first, err := r.EnsureAccount(context.Background(), wxsync.Account{ExternalID: "uin-1", Token: "tok-1"})
	require.NoError(t, err)
	assert.Equal(t, wxsync.AccountStatusActive, first.Status)

	// A second login for the same identity returns the stored row.
	second, err := r.EnsureAccount(context.Background(), wxsync.Account{ExternalID: "uin-1", Token: "tok-2"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "tok-1", second.Token)

	accts, err := r.AccountsByStatus(context.Background(), wxsync.AccountStatusActive)
	require.NoError(t, err)
	assert.Len(t, accts, 1)
}

func TestUpdateAccountStatus(t *testing.T) {
	r := newTestRepo(t)
	acct := seedAccount(t, r)

	until := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	require.NoError(t, r.UpdateAccountStatus(context.Background(), acct.ID, wxsync.AccountStatusBlacklisted, &until))

	got, err := r.Account(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, wxsync.AccountStatusBlacklisted, got.Status)
	require.NotNil(t, got.BlacklistedUntil)
	assert.True(t, until.Equal(*got.BlacklistedUntil))

	// Clearing the expiry along with the status.
	require.NoError(t, r.UpdateAccountStatus(context.Background(), acct.ID, wxsync.AccountStatusActive, nil))

	got, err = r.Account(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, wxsync.AccountStatusActive, got.Status)
	assert.Nil(t, got.BlacklistedUntil)
}

func TestEnsureFeedIdempotent(t *testing.T) {
	r := newTestRepo(t)
	acct := seedAccount(t, r)

	first := seedFeed(t, r, "gh_123", acct.ID)
	second := seedFeed(t, r, "gh_123", acct.ID)
	assert.Equal(t, first.ID, second.ID)

	feeds, err := r.AllFeeds(context.Background())
	require.NoError(t, err)
	assert.Len(t, feeds, 1)
}

func TestFeedsNeedingSync(t *testing.T) {
	r := newTestRepo(t)
	acct := seedAccount(t, r)

	var (
		never  = seedFeed(t, r, "gh_never", acct.ID)
		stale  = seedFeed(t, r, "gh_stale", acct.ID)
		staler = seedFeed(t, r, "gh_staler", acct.ID)
		fresh  = seedFeed(t, r, "gh_fresh", acct.ID)
		now    = time.Now().UTC()
	)
	require.NoError(t, r.UpdateFeedLastSync(context.Background(), stale.ID, now.Add(-7*time.Hour)))
	require.NoError(t, r.UpdateFeedLastSync(context.Background(), staler.ID, now.Add(-8*time.Hour)))
	require.NoError(t, r.UpdateFeedLastSync(context.Background(), fresh.ID, now.Add(-time.Hour)))

	got, err := r.FeedsNeedingSync(context.Background(), now.Add(-6*time.Hour))
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, feed := range got {
		ids = append(ids, feed.ID)
	}
	assert.Equal(t, []string{never.ID, staler.ID, stale.ID}, ids)
}

func TestInsertArticlesSkipsDuplicates(t *testing.T) {
	r := newTestRepo(t)
	acct := seedAccount(t, r)
	feed := seedFeed(t, r, "gh_123", acct.ID)

	now := time.Now().UTC()
	n, err := r.InsertArticles(context.Background(), []wxsync.Article{
		{FeedID: feed.ID, Title: "one", SourceURL: "https://mp.example.com/s/one", PublishedAt: now},
		{FeedID: feed.ID, Title: "two", SourceURL: "https://mp.example.com/s/two", PublishedAt: now},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// One duplicate url, one new: only the new row counts.
	n, err = r.InsertArticles(context.Background(), []wxsync.Article{
		{FeedID: feed.ID, Title: "one again", SourceURL: "https://mp.example.com/s/one", PublishedAt: now},
		{FeedID: feed.ID, Title: "three", SourceURL: "https://mp.example.com/s/three", PublishedAt: now},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The stored row is unchanged by the skipped duplicate.
	arts, err := r.ArticlesByFeed(context.Background(), feed.ID)
	require.NoError(t, err)
	require.Len(t, arts, 3)
	for _, article := range arts {
		assert.NotEqual(t, "one again", article.Title)
	}
}

func TestMarkArticleSynced(t *testing.T) {
	r := newTestRepo(t)
	acct := seedAccount(t, r)
	feed := seedFeed(t, r, "gh_123", acct.ID)

	_, err := r.InsertArticles(context.Background(), []wxsync.Article{
		{FeedID: feed.ID, Title: "one", SourceURL: "https://mp.example.com/s/one", PublishedAt: time.Now().UTC()},
	})
	require.NoError(t, err)

	unsynced, err := r.UnsyncedArticles(context.Background())
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	articleID := unsynced[0].ID

	require.NoError(t, r.MarkArticleSynced(context.Background(), articleID, "2024-06-10-one.md"))

	unsynced, err = r.UnsyncedArticles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, unsynced)

	got, err := r.Article(context.Background(), articleID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
	require.NotNil(t, got.NoteRef)
	assert.Equal(t, "2024-06-10-one.md", *got.NoteRef)
}

func TestDeleteArticlesOlderThan(t *testing.T) {
	r := newTestRepo(t)
	acct := seedAccount(t, r)
	feed := seedFeed(t, r, "gh_123", acct.ID)

	now := time.Now().UTC()
	_, err := r.InsertArticles(context.Background(), []wxsync.Article{
		{FeedID: feed.ID, Title: "fresh", SourceURL: "https://mp.example.com/s/fresh", PublishedAt: now},
		{FeedID: feed.ID, Title: "old", SourceURL: "https://mp.example.com/s/old", PublishedAt: now.AddDate(0, 0, -30)},
		{FeedID: feed.ID, Title: "older", SourceURL: "https://mp.example.com/s/older", PublishedAt: now.AddDate(0, 0, -60)},
	})
	require.NoError(t, err)

	ids, err := r.DeleteArticlesOlderThan(context.Background(), now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	remaining, err := r.ArticlesByFeed(context.Background(), feed.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh", remaining[0].Title)
}

func TestDeleteFeedCascadesToArticles(t *testing.T) {
	r := newTestRepo(t)
	acct := seedAccount(t, r)
	feed := seedFeed(t, r, "gh_123", acct.ID)
	other := seedFeed(t, r, "gh_456", acct.ID)

	now := time.Now().UTC()
	_, err := r.InsertArticles(context.Background(), []wxsync.Article{
		{FeedID: feed.ID, Title: "one", SourceURL: "https://mp.example.com/s/one", PublishedAt: now},
		{FeedID: feed.ID, Title: "two", SourceURL: "https://mp.example.com/s/two", PublishedAt: now},
		{FeedID: other.ID, Title: "kept", SourceURL: "https://mp.example.com/s/kept", PublishedAt: now},
	})
	require.NoError(t, err)

	require.NoError(t, r.DeleteFeed(context.Background(), feed.ID))

	_, err = r.Feed(context.Background(), feed.ID)
	assert.ErrorIs(t, err, wxsync.ErrNotFound)

	// No orphaned rows left behind.
	orphans, err := r.ArticlesByFeed(context.Background(), feed.ID)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	// The other feed's articles are untouched.
	kept, err := r.ArticlesByFeed(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestDeleteFeedNotFound(t *testing.T) {
	r := newTestRepo(t)

	err := r.DeleteFeed(context.Background(), "nope")
	assert.ErrorIs(t, err, wxsync.ErrNotFound)
}
