package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"safetycheck/api/internal/app"
	"safetycheck/api/internal/authpw"
	"safetycheck/api/internal/blob"
	"safetycheck/api/internal/config"
	"safetycheck/api/internal/email"
	"safetycheck/api/internal/export"
	"safetycheck/api/internal/log"
	"safetycheck/api/internal/notify"
	"safetycheck/api/internal/search"
	"safetycheck/api/internal/session"
	"safetycheck/api/internal/store"
)

func main() {
	cfg := config.Load()
	if !log.SetLevel(cfg.LogLevel) {
		log.Warnf("unknown LOG_LEVEL %q, keeping info", cfg.LogLevel)
	}
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	pg := store.NewPostgresStore(db)
	deps := app.Deps{
		Store: pg,
		Auth:  authpw.NewService(pg, cfg.AdminEmail),
		PDF:   export.NewService(cfg.ChromiumPath),
		Mailer: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
		Notifier: notify.New(notify.Config{
			WebhookURL: cfg.WebhookURL,
			AdminEmail: cfg.AdminEmail,
			CC:         cfg.EmailCC,
			AppURL:     cfg.AppURL,
		}),
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Infof("using Redis for session storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
	} else {
		log.Infof("using PostgreSQL for session storage")
	}

	if uploader, err := blob.New(cfg.Storage); err != nil {
		log.Warnf("storage %q unavailable, uploads disabled: %v", cfg.Storage.Type, err)
	} else {
		deps.Blob = uploader
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meili.Close()
	}
	searchService := search.NewService(meili, search.NewPgFTS(db))
	deps.Search = searchService
	if meili != nil {
		go searchService.ReindexAllFromPG(context.Background())
	}

	service := app.New(cfg, deps)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, cfg.CORSOrigin).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infof("safety inspection API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
}
