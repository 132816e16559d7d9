// Package notes writes one markdown note per stored article into a flat
// directory and removes them again when articles get pruned.
//
// Note files are best-effort derivatives: a missing note is never an error,
// and the article's note_ref column is the only authoritative link back.
package notes

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"wxsync/internal/render"
	"wxsync/internal/wxsync"
)

type Creator struct {
	dir string
}

func NewCreator(dir string) (*Creator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating notes directory: %s", err)
	}

	return &Creator{dir: dir}, nil
}

// BatchResult tallies one create pass.
type BatchResult struct {
	Created int
	Skipped int
	Failed  int

	// Refs maps article id to its note ref, for created and skipped alike.
	Refs map[string]string
}

// CreateBatch writes a note for every article that doesn't have one yet.
//
// A single article failing to render or write is logged and counted, never
// fatal to the batch.
func (c *Creator) CreateBatch(ctx context.Context, articles []wxsync.Article, feedTitles map[string]string) BatchResult {
	res := BatchResult{Refs: make(map[string]string)}

	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return res
		}

		ref := noteRef(article)
		path := filepath.Join(c.dir, ref)

		if _, err := os.Stat(path); err == nil {
			res.Skipped++
			res.Refs[article.ID] = ref
			continue
		}

		body := noteBody(article, feedTitles[article.FeedID])
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			slog.Error("error writing note", "article_id", article.ID, "path", path, "error", err)
			res.Failed++
			continue
		}

		res.Created++
		res.Refs[article.ID] = ref
	}

	return res
}

// DeleteByArticleIDs removes the notes belonging to the given articles and
// returns how many files were actually deleted. A note that never existed
// is not an error.
func (c *Creator) DeleteByArticleIDs(ctx context.Context, ids []string) (int, error) {
	var deleted int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		// Note names embed the article id, so the article row doesn't need
		// to still exist.
		matches, err := filepath.Glob(filepath.Join(c.dir, "*"+id+".md"))
		if err != nil {
			continue
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil {
				slog.Warn("error removing note", "path", path, "error", err)
				continue
			}
			deleted++
		}
	}

	return deleted, nil
}

// noteRef derives the stable note filename for an article.
func noteRef(article wxsync.Article) string {
	return fmt.Sprintf("%s-%s-%s.md",
		article.PublishedAt.Format("2006-01-02"),
		slug(article.Title),
		article.ID,
	)
}

func noteBody(article wxsync.Article, feedTitle string) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", article.Title)
	fmt.Fprintf(&b, "feed: %q\n", feedTitle)
	fmt.Fprintf(&b, "source: %s\n", article.SourceURL)
	fmt.Fprintf(&b, "published: %s\n", article.PublishedAt.Format("2006-01-02T15:04:05Z07:00"))
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", article.Title)
	b.WriteString(render.Text(article.RawContent, article.SourceURL))
	b.WriteString("\n")

	return b.String()
}

// slug flattens a title into something filesystem safe.
func slug(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > 60 {
		out = out[:60]
	}
	if out == "" {
		out = "untitled"
	}

	return out
}
