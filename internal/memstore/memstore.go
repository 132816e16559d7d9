// Package memstore is an in-memory implementation of the repository
// surface, used by tests and by the daemon's dry-run mode.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wxsync/internal/wxsync"
)

var _ wxsync.Repository = (*Repo)(nil)

type Repo struct {
	mu       sync.Mutex
	seq      int
	accounts []wxsync.Account
	feeds    []wxsync.Feed
	articles []wxsync.Article
}

func New() *Repo {
	return &Repo{}
}

func (r *Repo) nextID(kind string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", kind, r.seq)
}

func (r *Repo) EnsureAccount(_ context.Context, acct wxsync.Account) (wxsync.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.ExternalID == acct.ExternalID {
			return existing, nil
		}
	}

	acct.ID = r.nextID("acct")
	if acct.Status == "" {
		acct.Status = wxsync.AccountStatusActive
	}
	acct.CreatedAt = time.Now()
	acct.UpdatedAt = acct.CreatedAt
	r.accounts = append(r.accounts, acct)

	return acct, nil
}

func (r *Repo) Account(_ context.Context, id string) (wxsync.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, acct := range r.accounts {
		if acct.ID == id {
			return acct, nil
		}
	}

	return wxsync.Account{}, wxsync.ErrNotFound
}

func (r *Repo) AccountsByStatus(_ context.Context, statuses ...wxsync.AccountStatus) ([]wxsync.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []wxsync.Account
	for _, acct := range r.accounts {
		for _, status := range statuses {
			if acct.Status == status {
				out = append(out, acct)
				break
			}
		}
	}

	return out, nil
}

func (r *Repo) UpdateAccountStatus(_ context.Context, id string, status wxsync.AccountStatus, until *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.accounts {
		if r.accounts[i].ID == id {
			r.accounts[i].Status = status
			r.accounts[i].BlacklistedUntil = until
			r.accounts[i].UpdatedAt = time.Now()
			return nil
		}
	}

	return wxsync.ErrNotFound
}

func (r *Repo) EnsureFeed(_ context.Context, feed wxsync.Feed) (wxsync.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.feeds {
		if existing.ExternalFeedID == feed.ExternalFeedID {
			return existing, nil
		}
	}

	feed.ID = r.nextID("feed")
	feed.CreatedAt = time.Now()
	feed.UpdatedAt = feed.CreatedAt
	r.feeds = append(r.feeds, feed)

	return feed, nil
}

func (r *Repo) Feed(_ context.Context, id string) (wxsync.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, feed := range r.feeds {
		if feed.ID == id {
			return feed, nil
		}
	}

	return wxsync.Feed{}, wxsync.ErrNotFound
}

func (r *Repo) FeedByExternalID(_ context.Context, externalFeedID string) (wxsync.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, feed := range r.feeds {
		if feed.ExternalFeedID == externalFeedID {
			return feed, nil
		}
	}

	return wxsync.Feed{}, wxsync.ErrNotFound
}

func (r *Repo) AllFeeds(_ context.Context) ([]wxsync.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]wxsync.Feed(nil), r.feeds...), nil
}

func (r *Repo) FeedsNeedingSync(_ context.Context, before time.Time) ([]wxsync.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Never-synced feeds first, then stalest first.
	var never, stale []wxsync.Feed
	for _, feed := range r.feeds {
		switch {
		case feed.LastSyncAt == nil:
			never = append(never, feed)
		case feed.LastSyncAt.Before(before):
			stale = append(stale, feed)
		}
	}
	for i := 1; i < len(stale); i++ {
		for j := i; j > 0 && stale[j].LastSyncAt.Before(*stale[j-1].LastSyncAt); j-- {
			stale[j], stale[j-1] = stale[j-1], stale[j]
		}
	}

	return append(never, stale...), nil
}

func (r *Repo) UpdateFeedLastSync(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.feeds {
		if r.feeds[i].ID == id {
			t := at
			r.feeds[i].LastSyncAt = &t
			r.feeds[i].UpdatedAt = at
			return nil
		}
	}

	return wxsync.ErrNotFound
}

func (r *Repo) DeleteFeed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, feed := range r.feeds {
		if feed.ID == id {
			r.feeds = append(r.feeds[:i], r.feeds[i+1:]...)

			// Articles cascade.
			kept := r.articles[:0]
			for _, article := range r.articles {
				if article.FeedID != id {
					kept = append(kept, article)
				}
			}
			r.articles = kept

			return nil
		}
	}

	return wxsync.ErrNotFound
}

func (r *Repo) InsertArticles(_ context.Context, articles []wxsync.Article) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var inserted int
	for _, article := range articles {
		if r.hasSourceURL(article.SourceURL) {
			continue
		}
		article.ID = r.nextID("art")
		article.CreatedAt = time.Now()
		r.articles = append(r.articles, article)
		inserted++
	}

	return inserted, nil
}

func (r *Repo) hasSourceURL(url string) bool {
	for _, article := range r.articles {
		if article.SourceURL == url {
			return true
		}
	}
	return false
}

func (r *Repo) Article(_ context.Context, id string) (wxsync.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, article := range r.articles {
		if article.ID == id {
			return article, nil
		}
	}

	return wxsync.Article{}, wxsync.ErrNotFound
}

func (r *Repo) ArticlesSince(_ context.Context, since time.Time) ([]wxsync.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []wxsync.Article
	for _, article := range r.articles {
		if !article.PublishedAt.Before(since) {
			out = append(out, article)
		}
	}

	return out, nil
}

func (r *Repo) UnsyncedArticles(_ context.Context) ([]wxsync.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []wxsync.Article
	for _, article := range r.articles {
		if !article.Synced {
			out = append(out, article)
		}
	}

	return out, nil
}

func (r *Repo) ArticlesByFeed(_ context.Context, feedID string) ([]wxsync.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []wxsync.Article
	for _, article := range r.articles {
		if article.FeedID == feedID {
			out = append(out, article)
		}
	}

	return out, nil
}

func (r *Repo) MarkArticleSynced(_ context.Context, id string, noteRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.articles {
		if r.articles[i].ID == id {
			r.articles[i].Synced = true
			ref := noteRef
			r.articles[i].NoteRef = &ref
			return nil
		}
	}

	return wxsync.ErrNotFound
}

func (r *Repo) DeleteArticlesOlderThan(_ context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		ids  []string
		kept = r.articles[:0]
	)
	for _, article := range r.articles {
		if article.PublishedAt.Before(cutoff) {
			ids = append(ids, article.ID)
			continue
		}
		kept = append(kept, article)
	}
	r.articles = kept

	return ids, nil
}
