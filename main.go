// Wxsync follows WeChat official accounts and periodically pulls their
// articles into sqlite, writing a markdown note per article.
//
// It runs two things: the sync loop and the admin API used to log in
// accounts and manage followed feeds.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	_ "modernc.org/sqlite"

	"wxsync/internal/accounts"
	"wxsync/internal/api"
	"wxsync/internal/fetch"
	"wxsync/internal/logger"
	"wxsync/internal/memstore"
	"wxsync/internal/migrations"
	"wxsync/internal/notes"
	"wxsync/internal/sqlite"
	"wxsync/internal/summarize"
	"wxsync/internal/sync"
	"wxsync/internal/wechat"
	"wxsync/internal/wxsync"
)

type config struct {
	Database string `env:"DATABASE, required"`
	NotesDir string `env:"NOTES_DIR, required"`

	WechatBaseURL string `env:"WECHAT_BASE_URL, required"`

	Port           int    `env:"PORT, default=4444"`
	AdminKey       string `env:"ADMIN_KEY, required"`
	CookieHashKey  string `env:"COOKIE_HASH_KEY, required"`
	CookieBlockKey string `env:"COOKIE_BLOCK_KEY, required"`
	HTTPSCookies   bool   `env:"HTTPS_COOKIES, default=false"`
	CorsHeader     string `env:"CORS_HEADER, default=*"`

	RetentionDays       int `env:"RETENTION_DAYS, default=7"`
	MaxPages            int `env:"MAX_PAGES, default=3"`
	PageDelaySeconds    int `env:"PAGE_DELAY_SECONDS, default=2"`
	StaleHours          int `env:"STALE_HOURS, default=6"`
	BlacklistHours      int `env:"BLACKLIST_HOURS, default=24"`
	RetryAttempts       int `env:"RETRY_ATTEMPTS, default=3"`
	RetryBaseMS         int `env:"RETRY_BASE_MS, default=1000"`
	SyncIntervalMinutes int `env:"SYNC_INTERVAL_MINUTES, default=30"`

	// Run against an in-memory store instead of sqlite. Nothing survives a
	// restart; for poking at the daemon locally.
	DryRun bool `env:"DRY_RUN, default=false"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, slog.LevelInfo))

	if err := runDaemon(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func runDaemon(ctx context.Context, cfg config) error {
	slog.Info("starting", "port", cfg.Port, "dry_run", cfg.DryRun)

	repo, err := openRepo(cfg)
	if err != nil {
		return err
	}

	client := wechat.NewClient(wechat.Config{
		BaseURL:     cfg.WechatBaseURL,
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   time.Duration(cfg.RetryBaseMS) * time.Millisecond,
	})

	mgr := accounts.NewManager(repo, client, time.Duration(cfg.BlacklistHours)*time.Hour)

	fetcher := fetch.NewService(repo, mgr, client, fetch.Config{
		PageDelay: time.Duration(cfg.PageDelaySeconds) * time.Second,
	})

	creator, err := notes.NewCreator(cfg.NotesDir)
	if err != nil {
		return fmt.Errorf("error preparing notes dir: %s", err)
	}

	syncer := sync.NewSyncer(fetcher, repo, creator, sync.Config{
		RetentionDays: cfg.RetentionDays,
		Interval:      time.Duration(cfg.SyncIntervalMinutes) * time.Minute,
		StaleAfter:    time.Duration(cfg.StaleHours) * time.Hour,
	})

	anthropicClient := anthropic.NewClient() // Key comes from the SDK's env lookup
	summarizer := summarize.New(&anthropicClient)

	server := api.NewServer(ctx, api.ServerConfig{
		Port:           cfg.Port,
		AdminKey:       cfg.AdminKey,
		CookieHashKey:  []byte(cfg.CookieHashKey),
		CookieBlockKey: []byte(cfg.CookieBlockKey),
		HttpsCookies:   cfg.HTTPSCookies,
		CorsHeader:     cfg.CorsHeader,
		RetentionDays:  cfg.RetentionDays,
		MaxPages:       cfg.MaxPages,
	}, repo, mgr, fetcher, syncer, summarizer)

	var g run.Group
	{
		g.Add(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("error listening: %s", err)
			}
			return nil
		}, func(error) {
			downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(downCtx); err != nil {
				slog.Error("error shutting down server", "error", err)
			}
		})
	}
	{
		loopCtx, loopCancel := context.WithCancel(ctx)
		g.Add(func() error {
			if err := syncer.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("error running sync loop: %s", err)
			}
			return nil
		}, func(error) {
			loopCancel()
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		slog.Info("shutting down", "signal", sigErr.Signal)
		return nil
	}
	return err
}

// openRepo picks the store: sqlite by default, in-memory for dry runs.
func openRepo(cfg config) (wxsync.Repository, error) {
	if cfg.DryRun {
		return memstore.New(), nil
	}

	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_txlock=immediate&_journal_mode=WAL&_busy_timeout=5000&_pragma=foreign_keys(1)", cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return nil, fmt.Errorf("error migrating: %s", err)
	}

	return sqlite.New(dbx), nil
}
