package wxsync

import (
	"context"
	"time"
)

type (
	// AccountRepo is the storage surface for accounts.
	AccountRepo interface {
		// EnsureAccount inserts the account, or returns the existing row for
		// its external id.
		EnsureAccount(ctx context.Context, acct Account) (Account, error)
		Account(ctx context.Context, id string) (Account, error)
		// AccountsByStatus returns every account in one of the given statuses.
		AccountsByStatus(ctx context.Context, statuses ...AccountStatus) ([]Account, error)
		// UpdateAccountStatus sets the status and the blacklist expiry in one
		// write. A nil until clears the expiry.
		UpdateAccountStatus(ctx context.Context, id string, status AccountStatus, until *time.Time) error
	}

	// FeedRepo is the storage surface for followed feeds.
	FeedRepo interface {
		// EnsureFeed inserts the feed, or returns the existing row for its
		// external feed id.
		EnsureFeed(ctx context.Context, feed Feed) (Feed, error)
		Feed(ctx context.Context, id string) (Feed, error)
		FeedByExternalID(ctx context.Context, externalFeedID string) (Feed, error)
		AllFeeds(ctx context.Context) ([]Feed, error)
		// FeedsNeedingSync returns feeds never synced first, then feeds whose
		// last sync is before the given time, oldest first.
		FeedsNeedingSync(ctx context.Context, before time.Time) ([]Feed, error)
		UpdateFeedLastSync(ctx context.Context, id string, at time.Time) error
		DeleteFeed(ctx context.Context, id string) error
	}

	// ArticleRepo is the storage surface for articles.
	ArticleRepo interface {
		// InsertArticles batch-inserts, silently skipping rows whose source
		// url is already stored. Returns the number actually inserted.
		InsertArticles(ctx context.Context, articles []Article) (int, error)
		Article(ctx context.Context, id string) (Article, error)
		ArticlesSince(ctx context.Context, since time.Time) ([]Article, error)
		UnsyncedArticles(ctx context.Context) ([]Article, error)
		ArticlesByFeed(ctx context.Context, feedID string) ([]Article, error)
		MarkArticleSynced(ctx context.Context, id string, noteRef string) error
		// DeleteArticlesOlderThan removes articles published before the
		// cutoff and returns their ids.
		DeleteArticlesOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
	}

	// Repository is the combined surface backed by a single store.
	Repository interface {
		AccountRepo
		FeedRepo
		ArticleRepo
	}
)
