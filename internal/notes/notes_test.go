package notes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxsync/internal/wxsync"
)

func testArticle(id, title string) wxsync.Article {
	return wxsync.Article{
		ID:          id,
		FeedID:      "feed-1",
		Title:       title,
		RawContent:  "<p>Some body text for the note.</p>",
		SourceURL:   "https://mp.example.com/s/" + id,
		PublishedAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestCreateBatch(t *testing.T) {
	c, err := NewCreator(t.TempDir())
	require.NoError(t, err)

	res := c.CreateBatch(context.Background(), []wxsync.Article{
		testArticle("art-1", "Hello, World!"),
		testArticle("art-2", "Second Post"),
	}, map[string]string{"feed-1": "Tech Weekly"})

	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Failed)

	ref, ok := res.Refs["art-1"]
	require.True(t, ok)
	assert.Equal(t, "2024-06-01-hello-world-art-1.md", ref)

	body, err := os.ReadFile(filepath.Join(c.dir, ref))
	require.NoError(t, err)
	assert.Contains(t, string(body), `feed: "Tech Weekly"`)
	assert.Contains(t, string(body), "# Hello, World!")
	assert.Contains(t, string(body), "Some body text")
}

func TestCreateBatch_ExistingNoteSkipped(t *testing.T) {
	c, err := NewCreator(t.TempDir())
	require.NoError(t, err)

	articles := []wxsync.Article{testArticle("art-1", "Hello")}
	feedTitles := map[string]string{"feed-1": "Tech Weekly"}

	first := c.CreateBatch(context.Background(), articles, feedTitles)
	require.Equal(t, 1, first.Created)

	second := c.CreateBatch(context.Background(), articles, feedTitles)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
	// The ref is still reported so the article can be marked synced.
	assert.Equal(t, first.Refs["art-1"], second.Refs["art-1"])
}

func TestDeleteByArticleIDs(t *testing.T) {
	c, err := NewCreator(t.TempDir())
	require.NoError(t, err)

	c.CreateBatch(context.Background(), []wxsync.Article{
		testArticle("art-1", "Hello"),
		testArticle("art-2", "World"),
	}, nil)

	deleted, err := c.DeleteByArticleIDs(context.Background(), []string{"art-1", "art-3"})
	require.NoError(t, err)

	// art-3 never had a note; that's not an error.
	assert.Equal(t, 1, deleted)

	remaining, err := filepath.Glob(filepath.Join(c.dir, "*.md"))
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "spaces and punctuation", input: "Hello, World!", expected: "hello-world"},
		{name: "non latin dropped", input: "读书笔记 2024", expected: "2024"},
		{name: "empty falls back", input: "！！！", expected: "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, slug(tt.input))
		})
	}
}
