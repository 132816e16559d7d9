package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wxsync/internal/accounts"
	"wxsync/internal/fetch"
	"wxsync/internal/memstore"
	"wxsync/internal/notes"
	"wxsync/internal/sync"
	"wxsync/internal/wechat"
	"wxsync/internal/wxsync"
)

// clientStub fakes the platform client for both the feed and login surfaces.
type clientStub struct {
	feeds map[string]wechat.FeedInfo
	pages map[int][]wechat.ArticleItem

	grant *wechat.Grant
}

func (c *clientStub) ResolveFeed(_ context.Context, shareLink string) (wechat.FeedInfo, error) {
	info, ok := c.feeds[shareLink]
	if !ok {
		return wechat.FeedInfo{}, &wechat.Error{Kind: wechat.KindBadRequest, Status: 400, Err: fmt.Errorf("unknown share link")}
	}
	return info, nil
}

func (c *clientStub) FeedArticles(_ context.Context, _ wechat.Credential, _ string, page int) ([]wechat.ArticleItem, error) {
	return c.pages[page], nil
}

func (c *clientStub) BeginLogin(context.Context) (wechat.LoginSession, error) {
	return wechat.LoginSession{ID: "sess-1", QRCodeURL: "https://example.com/qr.png"}, nil
}

func (c *clientStub) PollLogin(context.Context, string) (*wechat.Grant, error) {
	return c.grant, nil
}

type summarizerStub struct {
	summary string
	err     error
}

func (s summarizerStub) Summarize(context.Context, wxsync.Article) (string, error) {
	return s.summary, s.err
}

type fixture struct {
	server *Server
	repo   *memstore.Repo
	client *clientStub
}

func newTestServer(t *testing.T) fixture {
	t.Helper()

	var (
		repo   = memstore.New()
		client = &clientStub{
			feeds: map[string]wechat.FeedInfo{},
			pages: map[int][]wechat.ArticleItem{},
		}
		mgr     = accounts.NewManager(repo, client, 0)
		fetcher = fetch.NewService(repo, mgr, client, fetch.Config{PageDelay: time.Millisecond})
	)

	creator, err := notes.NewCreator(t.TempDir())
	require.NoError(t, err)

	syncer := sync.NewSyncer(fetcher, repo, creator, sync.Config{})

	srvr := NewServer(context.Background(), ServerConfig{
		Port:           0,
		AdminKey:       "sesame",
		CookieHashKey:  []byte("0123456789abcdef0123456789abcdef"),
		CookieBlockKey: []byte("0123456789abcdef"),
		PollInterval:   time.Millisecond,
	}, repo, mgr, fetcher, syncer, summarizerStub{summary: "tl;dr"})

	return fixture{server: srvr, repo: repo, client: client}
}

// seedAccount puts an active account in the store so subscribe has capacity.
func seedAccount(t *testing.T, repo *memstore.Repo) wxsync.Account {
	t.Helper()

	acct, err := repo.EnsureAccount(context.Background(), wxsync.Account{
		DisplayName: "ops",
		ExternalID:  "uin-1",
		Token:       "tok-1",
		Status:      wxsync.AccountStatusActive,
	})
	require.NoError(t, err)
	return acct
}

// seedFeed follows a feed through the service so ids are real.
func seedFeed(t *testing.T, f fixture, shareLink, externalID, title string) wxsync.Feed {
	t.Helper()

	f.client.feeds[shareLink] = wechat.FeedInfo{
		ExternalFeedID: externalID,
		Title:          title,
	}
	feed, err := f.server.fetcher.Subscribe(context.Background(), shareLink)
	require.NoError(t, err)
	return feed
}

func seedArticle(t *testing.T, repo *memstore.Repo, feedID, title, sourceURL string, published time.Time) wxsync.Article {
	t.Helper()

	ctx := context.Background()
	n, err := repo.InsertArticles(ctx, []wxsync.Article{{
		FeedID:      feedID,
		Title:       title,
		Content:     "<p>" + title + "</p>",
		RawContent:  "<html><body><p>" + title + "</p></body></html>",
		SourceURL:   sourceURL,
		PublishedAt: published,
	}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	arts, err := repo.ArticlesByFeed(ctx, feedID)
	require.NoError(t, err)
	for _, a := range arts {
		if a.SourceURL == sourceURL {
			return a
		}
	}
	t.Fatalf("seeded article not found: %s", sourceURL)
	return wxsync.Article{}
}

func TestWriteJSONSetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, writeJSON(rec, http.StatusOK, struct{}{}))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, http.StatusOK, rec.Code)
}
