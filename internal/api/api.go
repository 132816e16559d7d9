// Package api is the admin surface of the daemon: logging in accounts,
// managing followed feeds, reading pulled articles, and poking the sync loop.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	lru "github.com/hashicorp/golang-lru/v2"

	"wxsync/internal/accounts"
	apierrs "wxsync/internal/errors"
	"wxsync/internal/fetch"
	"wxsync/internal/sync"
	"wxsync/internal/wxsync"
)

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("error encoding json response: %s", err)
	}

	return nil
}

// validator is a surface that can validate itself and return an error
// if something is wrong.
type validator interface {
	Validate() error
}

// decodeValid decodes a request and then validates it.
func decodeValid[V validator](r io.Reader) (V, error) {
	var v V
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return v, apierrs.E(http.StatusBadRequest, fmt.Errorf("error decoding request: %w", err))
	}
	if err := v.Validate(); err != nil {
		return v, err
	}

	return v, nil
}

// HandlerFuncE is a modified type of [http.HandlerFunc] that returns an error.
type HandlerFuncE func(w http.ResponseWriter, r *http.Request) error

func (f HandlerFuncE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := f(w, r)
	if err == nil {
		return
	}

	sErr := apierrs.From(err)
	if sErr.Status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "handler error", "err", err)
	}

	if err := writeJSON(w, sErr.Status, sErr); err != nil {
		slog.Error("error writing response", "error", err)
	}
}

// errRouter is a newtype around a mux router that allows attaching handlers that return errors.
type errRouter struct {
	*mux.Router
}

func (r errRouter) HandleFuncE(path string, f HandlerFuncE) *mux.Route {
	return r.Handle(path, f)
}

// Summarizer produces a short summary for a stored article.
type Summarizer interface {
	Summarize(ctx context.Context, article wxsync.Article) (string, error)
}

type (
	// Server handles the admin API: it does not serve article content to
	// end users, only to whoever holds the admin key.
	Server struct {
		*http.Server

		repo       wxsync.Repository
		accounts   *accounts.Manager
		fetcher    *fetch.Service
		syncer     *sync.Syncer
		summarizer Summarizer

		articleRespCache *lru.Cache[string, ArticleResp]
		logins           *loginRegistry

		secureCookie  *securecookie.SecureCookie
		adminKey      string
		httpsCookies  bool
		retentionDays int
		maxPages      int
		pollInterval  time.Duration

		// Background context for login pollers, so they outlive the
		// request that started them.
		baseCtx context.Context
	}

	ServerConfig struct {
		Port           int
		AdminKey       string
		CookieHashKey  []byte
		CookieBlockKey []byte
		HttpsCookies   bool
		CorsHeader     string
		RetentionDays  int
		MaxPages       int
		PollInterval   time.Duration
	}
)

func NewServer(ctx context.Context, config ServerConfig, repo wxsync.Repository, mgr *accounts.Manager, fetcher *fetch.Service, syncer *sync.Syncer, summarizer Summarizer) *Server {
	var (
		r        = errRouter{Router: mux.NewRouter()}
		cache, _ = lru.New[string, ArticleResp](1024)
	)

	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 7
	}
	if config.MaxPages <= 0 {
		config.MaxPages = 3
	}

	srvr := Server{
		repo:       repo,
		accounts:   mgr,
		fetcher:    fetcher,
		syncer:     syncer,
		summarizer: summarizer,

		articleRespCache: cache,
		logins:           newLoginRegistry(),

		secureCookie:  securecookie.New(config.CookieHashKey, config.CookieBlockKey),
		adminKey:      config.AdminKey,
		httpsCookies:  config.HttpsCookies,
		retentionDays: config.RetentionDays,
		maxPages:      config.MaxPages,
		pollInterval:  config.PollInterval,

		baseCtx: ctx,

		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsHeader}),
				handlers.AllowCredentials(),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(accessLogMiddleware) // Log everything
	r.HandleFuncE("/v1/session", srvr.postSession).Methods(http.MethodPost)
	r.HandleFuncE("/v1/session", srvr.deleteSession).Methods(http.MethodDelete)

	authed := errRouter{Router: r.NewRoute().Subrouter()}
	authed.Use(requireSessionMiddleware(srvr.secureCookie))

	// WeChat account login handshake
	authed.HandleFuncE("/v1/logins", srvr.postLogins).Methods(http.MethodPost)
	authed.HandleFuncE("/v1/logins/{sessionID}", srvr.getLogin).Methods(http.MethodGet)
	authed.HandleFuncE("/v1/accounts", srvr.getAccounts).Methods(http.MethodGet)

	// Followed feeds
	authed.HandleFuncE("/v1/feeds", srvr.postFeeds).Methods(http.MethodPost)
	authed.HandleFuncE("/v1/feeds", srvr.getFeeds).Methods(http.MethodGet)
	authed.HandleFuncE("/v1/feeds/{feedID}", srvr.deleteFeed).Methods(http.MethodDelete)

	// Articles
	authed.HandleFuncE("/v1/articles", srvr.getArticles).Methods(http.MethodGet)
	authed.HandleFuncE("/v1/articles/{articleID}", srvr.getArticle).Methods(http.MethodGet)
	authed.HandleFuncE("/v1/articles/{articleID}/summary", srvr.postSummary).Methods(http.MethodPost)

	// Sync control
	authed.HandleFuncE("/v1/sync", srvr.postSync).Methods(http.MethodPost)

	slog.Debug("configured admin server", "port", config.Port)

	return &srvr
}
