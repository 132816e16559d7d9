// Package sync drives full refresh cycles: pull every feed, turn new
// articles into notes, prune what has aged out of the retention window.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wxsync/internal/fetch"
	"wxsync/internal/notes"
	"wxsync/internal/wxsync"
)

// NoteCreator is the derivative-artifact surface the syncer drives.
type NoteCreator interface {
	CreateBatch(ctx context.Context, articles []wxsync.Article, feedTitles map[string]string) notes.BatchResult
	DeleteByArticleIDs(ctx context.Context, ids []string) (int, error)
}

type (
	Syncer struct {
		fetcher *fetch.Service
		repo    wxsync.Repository
		notes   NoteCreator

		retentionDays int
		interval      time.Duration
		staleAfter    time.Duration
		now           func() time.Time
	}

	Config struct {
		RetentionDays int           // defaults to 7
		Interval      time.Duration // defaults to 30m
		StaleAfter    time.Duration // defaults to 6h
	}

	// CycleResult aggregates the outcome of one full cycle.
	CycleResult struct {
		Refresh fetch.Summary `json:"refresh"`

		NotesCreated int `json:"notes_created"`
		NotesFailed  int `json:"notes_failed"`

		ArticlesDeleted int `json:"articles_deleted"`
		NotesDeleted    int `json:"notes_deleted"`
	}
)

func NewSyncer(fetcher *fetch.Service, repo wxsync.Repository, creator NoteCreator, cfg Config) *Syncer {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 6 * time.Hour
	}

	return &Syncer{
		fetcher:       fetcher,
		repo:          repo,
		notes:         creator,
		retentionDays: cfg.RetentionDays,
		interval:      cfg.Interval,
		staleAfter:    cfg.StaleAfter,
		now:           time.Now,
	}
}

// Run performs a cycle immediately and then on every interval tick until the
// context is canceled.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		result, err := s.RunCycle(ctx, s.retentionDays)
		if err != nil {
			slog.Error("sync cycle failed", "error", err)
		} else {
			slog.Info("sync cycle finished",
				"feeds_total", result.Refresh.Total,
				"feeds_failed", result.Refresh.Failed,
				"notes_created", result.NotesCreated,
				"articles_deleted", result.ArticlesDeleted,
				"notes_deleted", result.NotesDeleted,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle refreshes every feed, writes notes for what's new, and prunes the
// retention window. A cycle that starts runs to completion: per-feed and
// per-note failures are tallied, and a broken prune degrades to zero counts
// instead of aborting.
func (s *Syncer) RunCycle(ctx context.Context, retentionDays int) (CycleResult, error) {
	return s.cycle(ctx, retentionDays, false)
}

// RunStaleCycle is RunCycle restricted to feeds past the staleness
// threshold, never-synced feeds first.
func (s *Syncer) RunStaleCycle(ctx context.Context, retentionDays int) (CycleResult, error) {
	return s.cycle(ctx, retentionDays, true)
}

func (s *Syncer) cycle(ctx context.Context, retentionDays int, staleOnly bool) (CycleResult, error) {
	var (
		result  CycleResult
		summary fetch.Summary
		err     error
	)

	if staleOnly {
		summary, err = s.fetcher.RefreshStale(ctx, s.staleAfter, retentionDays)
	} else {
		summary, err = s.fetcher.RefreshAll(ctx, retentionDays)
	}
	if err != nil {
		return result, fmt.Errorf("error refreshing feeds: %w", err)
	}
	result.Refresh = summary

	result.NotesCreated, result.NotesFailed = s.writeNotes(ctx)

	result.ArticlesDeleted, result.NotesDeleted = s.prune(ctx, retentionDays)

	return result, nil
}

// writeNotes renders every unsynced article into a note and marks it synced.
func (s *Syncer) writeNotes(ctx context.Context) (created, failed int) {
	unsynced, err := s.repo.UnsyncedArticles(ctx)
	if err != nil {
		slog.Error("error listing unsynced articles", "error", err)
		return 0, 0
	}
	if len(unsynced) == 0 {
		return 0, 0
	}

	feeds, err := s.repo.AllFeeds(ctx)
	if err != nil {
		slog.Error("error listing feeds for note titles", "error", err)
		return 0, 0
	}
	feedTitles := make(map[string]string, len(feeds))
	for _, feed := range feeds {
		feedTitles[feed.ID] = feed.Title
	}

	res := s.notes.CreateBatch(ctx, unsynced, feedTitles)

	// Synced only flips once a note actually exists. A ref also comes back
	// for notes left over from an earlier partial run.
	for id, ref := range res.Refs {
		if err := s.repo.MarkArticleSynced(ctx, id, ref); err != nil {
			slog.Error("error marking article synced", "article_id", id, "error", err)
		}
	}

	return res.Created, res.Failed
}

// prune clears articles older than the retention cutoff and their notes.
//
// The prune is strictly best-effort: any failure is logged and reported as
// zero deletions rather than failing a cycle that got this far.
func (s *Syncer) prune(ctx context.Context, retentionDays int) (articlesDeleted, notesDeleted int) {
	cutoff := s.now().AddDate(0, 0, -retentionDays)

	ids, err := s.repo.DeleteArticlesOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("error pruning articles", "cutoff", cutoff, "error", err)
		return 0, 0
	}
	if len(ids) == 0 {
		return 0, 0
	}

	deleted, err := s.notes.DeleteByArticleIDs(ctx, ids)
	if err != nil {
		slog.Error("error pruning notes", "error", err)
		return 0, 0
	}

	return len(ids), deleted
}

// RemoveFeed unfollows a feed: its articles cascade away and their notes are
// removed best-effort.
func (s *Syncer) RemoveFeed(ctx context.Context, feedID string) error {
	articles, err := s.repo.ArticlesByFeed(ctx, feedID)
	if err != nil {
		return fmt.Errorf("error listing feed articles: %s", err)
	}

	if err := s.repo.DeleteFeed(ctx, feedID); err != nil {
		return fmt.Errorf("error deleting feed: %w", err)
	}

	ids := make([]string, 0, len(articles))
	for _, article := range articles {
		ids = append(ids, article.ID)
	}
	if _, err := s.notes.DeleteByArticleIDs(ctx, ids); err != nil {
		slog.Warn("error removing feed notes", "feed_id", feedID, "error", err)
	}

	return nil
}
