package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"wxsync/internal/render"
	"wxsync/internal/wxsync"
)

type ArticleListItem struct {
	ID          string    `json:"id"`
	FeedID      string    `json:"feed_id"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	SourceURL   string    `json:"source_url"`
	PublishedAt time.Time `json:"published_at"`
	Synced      bool      `json:"synced"`
}

type ArticleListResp struct {
	Items      []ArticleListItem `json:"items"`
	Pagination paginationMeta    `json:"pagination"`
}

func (s *Server) getArticles(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx    = r.Context()
		feedID = r.URL.Query().Get("feed_id")
		pg     = pageFromRequest(r)
	)

	var (
		arts []wxsync.Article
		err  error
	)
	if feedID != "" {
		arts, err = s.repo.ArticlesByFeed(ctx, feedID)
	} else {
		since := time.Now().AddDate(0, 0, -s.retentionDays)
		arts, err = s.repo.ArticlesSince(ctx, since)
	}
	if err != nil {
		return err
	}

	window := pageOf(arts, pg)
	items := make([]ArticleListItem, 0, len(window))
	for _, a := range window {
		items = append(items, ArticleListItem{
			ID:          a.ID,
			FeedID:      a.FeedID,
			Title:       a.Title,
			Snippet:     render.Snippet(a.Content),
			SourceURL:   a.SourceURL,
			PublishedAt: a.PublishedAt,
			Synced:      a.Synced,
		})
	}

	return writeJSON(w, http.StatusOK, ArticleListResp{
		Items:      items,
		Pagination: pg.meta(len(arts)),
	})
}

type ArticleResp struct {
	ID          string    `json:"id"`
	FeedID      string    `json:"feed_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Text        string    `json:"text"`
	SourceURL   string    `json:"source_url"`
	PublishedAt time.Time `json:"published_at"`
	NoteRef     *string   `json:"note_ref,omitempty"`
}

// getArticle returns a single article with its sanitized html and a plain
// text rendering. Renders are cached since extraction is the expensive part;
// the row is still read on every request so deleted or pruned articles stop
// resolving immediately, and so mutable fields stay current.
func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) error {
	articleID := mux.Vars(r)["articleID"]

	article, err := s.repo.Article(r.Context(), articleID)
	if err != nil {
		return err
	}

	if resp, ok := s.articleRespCache.Get(articleID); ok {
		resp.NoteRef = article.NoteRef
		return writeJSON(w, http.StatusOK, resp)
	}

	resp := ArticleResp{
		ID:          article.ID,
		FeedID:      article.FeedID,
		Title:       article.Title,
		Content:     render.Clean(article.RawContent),
		Text:        render.Text(article.RawContent, article.SourceURL),
		SourceURL:   article.SourceURL,
		PublishedAt: article.PublishedAt,
		NoteRef:     article.NoteRef,
	}
	s.articleRespCache.Add(articleID, resp)

	return writeJSON(w, http.StatusOK, resp)
}

type SummaryResp struct {
	ArticleID string `json:"article_id"`
	Summary   string `json:"summary"`
}

func (s *Server) postSummary(w http.ResponseWriter, r *http.Request) error {
	articleID := mux.Vars(r)["articleID"]

	article, err := s.repo.Article(r.Context(), articleID)
	if err != nil {
		return err
	}

	summary, err := s.summarizer.Summarize(r.Context(), article)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, SummaryResp{
		ArticleID: article.ID,
		Summary:   summary,
	})
}
