package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxsync/internal/sync"
	"wxsync/internal/wechat"
)

func TestPostSync(t *testing.T) {
	f := newTestServer(t)
	seedAccount(t, f.repo)
	seedFeed(t, f, "https://mp.example.com/share/a", "gh_a", "Feed A")

	f.client.pages = map[int][]wechat.ArticleItem{
		1: {{
			Title:       "fresh",
			SourceURL:   "https://mp.example.com/a/fresh",
			ContentHTML: "<p>fresh</p>",
			PublishedAt: time.Now().Unix(),
		}},
	}

	var (
		req = httptest.NewRequest(http.MethodPost, "/v1/sync", nil)
		rec = httptest.NewRecorder()
	)
	require.NoError(t, f.server.postSync(rec, req))
	require.Equal(t, http.StatusOK, rec.Code)

	var result sync.CycleResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 1, result.Refresh.Total)
	assert.Equal(t, 1, result.Refresh.Successful)
	assert.Equal(t, 1, result.NotesCreated)
}
