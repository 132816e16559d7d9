package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wxsync/internal/wxsync"
)

const articleNamespace = "-art"

// InsertArticles batch-inserts the given articles.
//
// Rows whose source url is already stored are skipped, not errors; the count
// of rows actually written is returned.
func (r Repo) InsertArticles(ctx context.Context, articles []wxsync.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	// Create id's for the articles
	for i := range articles {
		articles[i].ID = uuid.NewString() + articleNamespace
	}

	const q = `INSERT INTO articles (id, feed_id, title, content, raw_content, source_url, published_at)
	VALUES (:id, :feed_id, :title, :content, :raw_content, :source_url, :published_at)
	ON CONFLICT (source_url) DO NOTHING;`
	res, err := r.db.NamedExecContext(ctx, q, articles)
	if err != nil {
		return 0, fmt.Errorf("error inserting articles: %s", err)
	}

	// Conflict-skipped rows don't count towards affected rows.
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting inserted articles: %s", err)
	}

	return int(n), nil
}

func (r Repo) Article(ctx context.Context, id string) (wxsync.Article, error) {
	const q = `SELECT * FROM articles WHERE id = ?;`

	var article wxsync.Article
	err := r.db.GetContext(ctx, &article, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return wxsync.Article{}, wxsync.ErrNotFound
	}
	if err != nil {
		return wxsync.Article{}, fmt.Errorf("error fetching article: %s", err)
	}

	return article, nil
}

func (r Repo) ArticlesSince(ctx context.Context, since time.Time) ([]wxsync.Article, error) {
	const q = `SELECT * FROM articles WHERE published_at >= ? ORDER BY published_at DESC;`

	var articles []wxsync.Article
	if err := r.db.SelectContext(ctx, &articles, q, since); err != nil {
		return nil, fmt.Errorf("error fetching articles: %s", err)
	}

	return articles, nil
}

func (r Repo) UnsyncedArticles(ctx context.Context) ([]wxsync.Article, error) {
	const q = `SELECT * FROM articles WHERE synced = FALSE ORDER BY published_at;`

	var articles []wxsync.Article
	if err := r.db.SelectContext(ctx, &articles, q); err != nil {
		return nil, fmt.Errorf("error fetching unsynced articles: %s", err)
	}

	return articles, nil
}

func (r Repo) ArticlesByFeed(ctx context.Context, feedID string) ([]wxsync.Article, error) {
	const q = `SELECT * FROM articles WHERE feed_id = ? ORDER BY published_at DESC;`

	var articles []wxsync.Article
	if err := r.db.SelectContext(ctx, &articles, q, feedID); err != nil {
		return nil, fmt.Errorf("error fetching feed articles: %s", err)
	}

	return articles, nil
}

// MarkArticleSynced flips the article to synced and records the note it was
// rendered into.
func (r Repo) MarkArticleSynced(ctx context.Context, id string, noteRef string) error {
	const q = `UPDATE articles SET synced = TRUE, note_ref = ? WHERE id = ?;`

	if _, err := r.db.ExecContext(ctx, q, noteRef, id); err != nil {
		return fmt.Errorf("error marking article synced: %s", err)
	}

	return nil
}

// DeleteArticlesOlderThan removes every article published before the cutoff
// and returns the ids of the removed rows.
func (r Repo) DeleteArticlesOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `DELETE FROM articles WHERE published_at < ? RETURNING id;`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, q, cutoff); err != nil {
		return nil, fmt.Errorf("error deleting old articles: %s", err)
	}

	return ids, nil
}
