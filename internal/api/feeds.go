package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apierrs "wxsync/internal/errors"
	"wxsync/internal/wxsync"
)

type PostFeedReq struct {
	ShareURL string `json:"share_url"`
}

func (r PostFeedReq) Validate() error {
	if r.ShareURL == "" {
		return apierrs.E("share_url is required", http.StatusBadRequest)
	}

	return nil
}

type FeedResp struct {
	ID             string     `json:"id"`
	ExternalFeedID string     `json:"external_feed_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	OwnerAccountID string     `json:"owner_account_id"`
	LastSyncAt     *time.Time `json:"last_sync_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

func apiFeed(f wxsync.Feed) FeedResp {
	return FeedResp{
		ID:             f.ID,
		ExternalFeedID: f.ExternalFeedID,
		Title:          f.Title,
		Description:    f.Description,
		OwnerAccountID: f.OwnerAccountID,
		LastSyncAt:     f.LastSyncAt,
		CreatedAt:      f.CreatedAt,
	}
}

// postFeeds follows a feed from a share link. Refollowing an existing feed
// returns it unchanged.
func (s *Server) postFeeds(w http.ResponseWriter, r *http.Request) error {
	body, err := decodeValid[PostFeedReq](r.Body)
	if err != nil {
		return err
	}

	feed, err := s.fetcher.Subscribe(r.Context(), body.ShareURL)
	if err != nil {
		return err
	}

	// Backfill history in the background; duplicates are skipped, so a
	// refollow just catches the feed up.
	go func() {
		stored, err := s.fetcher.FetchPaged(s.baseCtx, feed, s.maxPages, s.retentionDays)
		if err != nil {
			slog.Warn("feed backfill failed", "feed_id", feed.ID, "error", err)
			return
		}
		slog.Info("feed backfill complete", "feed_id", feed.ID, "stored", stored)
	}()

	return writeJSON(w, http.StatusCreated, apiFeed(feed))
}

type FeedListResp struct {
	Feeds []FeedResp `json:"feeds"`
}

func (s *Server) getFeeds(w http.ResponseWriter, r *http.Request) error {
	feeds, err := s.repo.AllFeeds(r.Context())
	if err != nil {
		return err
	}

	resp := FeedListResp{Feeds: []FeedResp{}}
	for _, f := range feeds {
		resp.Feeds = append(resp.Feeds, apiFeed(f))
	}

	return writeJSON(w, http.StatusOK, resp)
}

// deleteFeed unfollows a feed, dropping its articles and their notes.
func (s *Server) deleteFeed(w http.ResponseWriter, r *http.Request) error {
	feedID := mux.Vars(r)["feedID"]

	if err := s.syncer.RemoveFeed(r.Context(), feedID); err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, struct{}{})
}
