package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sitecms/api/internal/app"
	"sitecms/api/internal/auth"
	"sitecms/api/internal/authpw"
	"sitecms/api/internal/config"
	"sitecms/api/internal/contentsync"
	"sitecms/api/internal/gitrepo"
	"sitecms/api/internal/media"
	"sitecms/api/internal/search"
	"sitecms/api/internal/session"
	"sitecms/api/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := appConfig

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	dataStore := store.NewPostgresStore(db)
	archive, versions, err := openArchive(cfg, dataStore)
	if err != nil {
		return err
	}

	persister := contentsync.NewPersister(dataStore, archive, dataStore, auth.ContextGate{})
	contentStore := contentsync.NewStore(dataStore, persister, cfg.PersistTimeout)

	deps := app.Deps{
		Content:   contentStore,
		Database:  dataStore,
		Operators: dataStore,
		Passwords: authpw.NewService(dataStore),
		Activity:  dataStore,
		Versions:  versions,
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for operator sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
	} else {
		log.Printf("REDIS_URL not set; operator sessions are kept in memory")
		deps.Sessions = session.NewMemoryStore()
	}

	if strings.TrimSpace(cfg.MinIOEndpoint) != "" {
		uploader, err := media.New(ctx, mediaConfig(cfg), cfg.MaxUploadBytes)
		if err != nil {
			return fmt.Errorf("media storage: %w", err)
		}
		deps.Media = uploader
	} else {
		log.Printf("MINIO_ENDPOINT not set; media uploads are disabled")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient)
	defer searchService.Close()
	deps.Search = searchService

	service := app.New(cfg, deps)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error: %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.PersistTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("sitecms API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Printf("waiting for in-flight content persists")
	contentStore.Wait()
	return nil
}

// openArchive picks where previous documents are archived. Version history
// reads from the same backend.
func openArchive(cfg config.Config, dataStore *store.PostgresStore) (contentsync.VersionArchive, app.VersionHistory, error) {
	if cfg.ArchiveBackend != config.ArchiveGit {
		return dataStore, app.PostgresVersions(dataStore), nil
	}
	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create archive dir: %w", err)
	}
	log.Printf("Archiving content versions to git repository at %s", cfg.ArchiveDir)
	archive := gitrepo.New(cfg.ArchiveDir)
	return archive, app.GitVersions(archive), nil
}

func mediaConfig(cfg config.Config) media.Config {
	return media.Config{
		Endpoint:      cfg.MinIOEndpoint,
		AccessKey:     cfg.MinIOAccessKey,
		SecretKey:     cfg.MinIOSecretKey,
		Bucket:        cfg.MinIOBucket,
		Region:        cfg.MinIORegion,
		UseSSL:        cfg.MinIOUseSSL,
		PublicBaseURL: cfg.MinIOPublicBaseURL,
	}
}

func openDatabase(ctx context.Context) (*sql.DB, error) {
	db, err := store.Open(ctx, appConfig.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}
