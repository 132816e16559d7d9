// Package fetch resolves subscriptions and pulls article pages from the
// platform into the store.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wxsync/internal/accounts"
	"wxsync/internal/render"
	"wxsync/internal/wechat"
	"wxsync/internal/wxsync"
)

// Client is the slice of the platform client the service needs.
type Client interface {
	ResolveFeed(ctx context.Context, shareLink string) (wechat.FeedInfo, error)
	FeedArticles(ctx context.Context, cred wechat.Credential, externalFeedID string, page int) ([]wechat.ArticleItem, error)
}

type (
	Service struct {
		repo     wxsync.Repository
		accounts *accounts.Manager
		client   Client

		pageDelay    time.Duration
		refreshPages int

		sleep func(ctx context.Context, d time.Duration)
		now   func() time.Time
	}

	Config struct {
		// Delay between page fetches; the only rate limiting applied on top
		// of per-account blacklisting.
		PageDelay time.Duration

		// Pages pulled per feed during a refresh pass. Defaults to 1: a
		// refresh only has to catch up, deep history comes from the initial
		// subscribe.
		RefreshPages int
	}

	// Summary tallies one refresh pass over a set of feeds.
	Summary struct {
		Total      int `json:"total"`
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
	}
)

func NewService(repo wxsync.Repository, mgr *accounts.Manager, client Client, cfg Config) *Service {
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = 2 * time.Second
	}
	if cfg.RefreshPages <= 0 {
		cfg.RefreshPages = 1
	}

	return &Service{
		repo:         repo,
		accounts:     mgr,
		client:       client,
		pageDelay:    cfg.PageDelay,
		refreshPages: cfg.RefreshPages,
		sleep:        sleepCtx,
		now:          time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Subscribe resolves a share link and follows the official account behind it.
//
// Subscribing to an already-followed feed returns the existing row
// unchanged; only a brand new feed needs a usable account to own it.
func (s *Service) Subscribe(ctx context.Context, shareLink string) (wxsync.Feed, error) {
	info, err := s.client.ResolveFeed(ctx, shareLink)
	if err != nil {
		return wxsync.Feed{}, fmt.Errorf("error resolving share link: %w", err)
	}

	existing, err := s.repo.FeedByExternalID(ctx, info.ExternalFeedID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, wxsync.ErrNotFound) {
		return wxsync.Feed{}, fmt.Errorf("error looking up feed: %s", err)
	}

	owner, err := s.accounts.SelectUsable(ctx)
	if err != nil {
		return wxsync.Feed{}, fmt.Errorf("error selecting account for feed: %w", err)
	}

	feed, err := s.repo.EnsureFeed(ctx, wxsync.Feed{
		ExternalFeedID: info.ExternalFeedID,
		Title:          render.Snippet(info.Title),
		Description:    render.Snippet(info.Description),
		OwnerAccountID: owner.ID,
	})
	if err != nil {
		return wxsync.Feed{}, fmt.Errorf("error creating feed: %s", err)
	}

	slog.Info("subscribed", "feed_id", feed.ID, "external_feed_id", feed.ExternalFeedID, "owner_account_id", owner.ID)

	return feed, nil
}

// FetchPaged pulls up to maxPages of a feed's history, newest first, keeping
// only articles inside the retention window. Returns how many were stored.
//
// Pages are reverse-chronological, so a page with zero qualifying items
// means everything deeper is out of window too and pagination stops. The
// feed's last sync time is updated no matter how the loop ends.
func (s *Service) FetchPaged(ctx context.Context, feed wxsync.Feed, maxPages, retentionDays int) (stored int, err error) {
	owner, err := s.repo.Account(ctx, feed.OwnerAccountID)
	if err != nil {
		return 0, fmt.Errorf("error fetching feed owner: %s", err)
	}
	cred := wechat.Credential{ExternalID: owner.ExternalID, Token: owner.Token}

	defer func() {
		if err := s.repo.UpdateFeedLastSync(context.WithoutCancel(ctx), feed.ID, s.now()); err != nil {
			slog.Error("error updating feed last sync", "feed_id", feed.ID, "error", err)
		}
	}()

	cutoff := s.now().AddDate(0, 0, -retentionDays)

	for page := 1; page <= maxPages; page++ {
		items, err := s.client.FeedArticles(ctx, cred, feed.ExternalFeedID, page)
		if err != nil {
			return stored, fmt.Errorf("error fetching page %d: %w", page, err)
		}

		articles := inWindow(feed.ID, items, cutoff)
		if len(articles) == 0 {
			break
		}

		// Duplicate source urls are skipped inside the store, silently.
		n, err := s.repo.InsertArticles(ctx, articles)
		if err != nil {
			return stored, fmt.Errorf("error storing page %d: %s", page, err)
		}
		stored += n

		if page < maxPages {
			s.sleep(ctx, s.pageDelay)
		}
	}

	return stored, nil
}

// inWindow converts the platform items published on or after the cutoff.
func inWindow(feedID string, items []wechat.ArticleItem, cutoff time.Time) []wxsync.Article {
	var articles []wxsync.Article
	for _, item := range items {
		publishedAt := item.PublishTime()
		if publishedAt.Before(cutoff) {
			continue
		}

		articles = append(articles, wxsync.Article{
			FeedID:      feedID,
			Title:       render.Snippet(item.Title),
			Content:     render.Clean(item.ContentHTML),
			RawContent:  item.ContentHTML,
			SourceURL:   item.SourceURL,
			PublishedAt: publishedAt,
		})
	}

	return articles
}

// RefreshAll runs one catch-up fetch over every feed.
func (s *Service) RefreshAll(ctx context.Context, retentionDays int) (Summary, error) {
	feeds, err := s.repo.AllFeeds(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("error listing feeds: %s", err)
	}

	return s.refresh(ctx, feeds, retentionDays), nil
}

// RefreshStale runs one catch-up fetch over feeds that haven't synced
// within the staleness threshold, never-synced feeds first.
func (s *Service) RefreshStale(ctx context.Context, staleThreshold time.Duration, retentionDays int) (Summary, error) {
	feeds, err := s.repo.FeedsNeedingSync(ctx, s.now().Add(-staleThreshold))
	if err != nil {
		return Summary{}, fmt.Errorf("error listing stale feeds: %s", err)
	}

	return s.refresh(ctx, feeds, retentionDays), nil
}

// refresh fetches each feed in turn. One feed failing never stops the rest:
// the error is tallied and reported against the owning account so its
// credential state can react.
func (s *Service) refresh(ctx context.Context, feeds []wxsync.Feed, retentionDays int) Summary {
	summary := Summary{Total: len(feeds)}

	for _, feed := range feeds {
		stored, err := s.FetchPaged(ctx, feed, s.refreshPages, retentionDays)
		if err != nil {
			summary.Failed++
			slog.Warn("feed refresh failed", "feed_id", feed.ID, "error", err)

			if repErr := s.accounts.ReportOutcome(ctx, feed.OwnerAccountID, err); repErr != nil {
				slog.Error("error reporting call outcome", "account_id", feed.OwnerAccountID, "error", repErr)
			}
			continue
		}

		summary.Successful++
		slog.Debug("feed refreshed", "feed_id", feed.ID, "stored", stored)
	}

	return summary
}
