// Spectacle is the webhook receiver for a Mirror-style timeline
// service.
//
// It classifies inbound notification pings and derives new timeline
// items from them: nearby-events cards for location updates, echoes of
// shared items, and republished entries from a social stream.
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
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/jdholdren/spectacle/internal/api"
	"github.com/jdholdren/spectacle/internal/content"
	"github.com/jdholdren/spectacle/internal/credstore"
	"github.com/jdholdren/spectacle/internal/migrations"
	"github.com/jdholdren/spectacle/internal/notify"
	"github.com/jdholdren/spectacle/logger"
)

type config struct {
	Port     int    `env:"PORT, default=4444"`
	Database string `env:"DATABASE, required"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	// Where the timeline service lives and where it can reach us back
	MirrorBaseURL string `env:"MIRROR_BASE_URL, required"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL, required"`

	// Third-party aggregation endpoints
	NearbyEventsURL string `env:"NEARBY_EVENTS_URL, required"`
	SocialFeedURL   string `env:"SOCIAL_FEED_URL, required"`

	// OAuth client for acting on users' timelines
	OAuthClientID     string   `env:"OAUTH_CLIENT_ID, required"`
	OAuthClientSecret string   `env:"OAUTH_CLIENT_SECRET, required"`
	OAuthAuthURL      string   `env:"OAUTH_AUTH_URL, required"`
	OAuthTokenURL     string   `env:"OAUTH_TOKEN_URL, required"`
	OAuthRedirectURL  string   `env:"OAUTH_REDIRECT_URL, required"`
	OAuthScopes       []string `env:"OAUTH_SCOPES, default=timeline"`
	UserInfoURL       string   `env:"USER_INFO_URL, required"`

	CookieHashKey  string `env:"COOKIE_HASH_KEY, required"`
	CookieBlockKey string `env:"COOKIE_BLOCK_KEY, required"`
	HTTPSCookies   bool   `env:"HTTPS_COOKIES, default=true"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	// Start the application
	if err := run(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	slog.Info("running", "port", cfg.Port, "database", cfg.Database)

	// Connect to the db
	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_journal_mode=WAL", cfg.Database))
	if err != nil {
		return fmt.Errorf("error opening database: %s", err)
	}

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	oauthConfig := oauth2.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
		Scopes:       cfg.OAuthScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.OAuthAuthURL,
			TokenURL: cfg.OAuthTokenURL,
		},
	}

	store := credstore.New(dbx)
	resolver := credstore.NewResolver(store, oauthConfig, cfg.MirrorBaseURL)
	source := content.New(cfg.NearbyEventsURL, cfg.SocialFeedURL)

	writer, err := notify.NewWriter(cfg.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("error creating writer: %s", err)
	}
	dispatcher := notify.NewDispatcher(resolver, source, writer)

	s := api.NewServer(api.ServerConfig{
		Port:           cfg.Port,
		CookieHashKey:  []byte(cfg.CookieHashKey),
		CookieBlockKey: []byte(cfg.CookieBlockKey),
		HTTPSCookies:   cfg.HTTPSCookies,
		OAuth:          oauthConfig,
		UserInfoURL:    cfg.UserInfoURL,
	}, dispatcher, store, resolver)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Start the server
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	})
	g.Go(func() error {
		// Block from shutting down until the group is canceled
		<-gCtx.Done()

		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}
