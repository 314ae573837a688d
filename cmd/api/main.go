package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/gorilla/mux"
	"github.com/molpadia/molpaupload/internal/app"
	"github.com/molpadia/molpaupload/internal/domain/repository"
	"github.com/molpadia/molpaupload/internal/infrastructure/persistence"
	"github.com/molpadia/molpaupload/internal/upload"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := setupLogger(os.Stderr, cfg.logLevel, cfg.logFormat); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}
	if err := os.MkdirAll(cfg.uploadDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.uploadDir).Msg("failed to create upload directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := upload.NewTracker()
	pipeline := upload.NewPipeline(tracker, upload.FileOpener{Sync: cfg.sync}, cfg.bufferSize)
	coordinator := upload.NewCoordinator(cfg.uploadDir, tracker, pipeline)
	if cfg.sessionTTL > 0 {
		go coordinator.Run(ctx, cfg.sweepInterval, cfg.sessionTTL)
	}

	r := mux.NewRouter()
	uploads, opts := setupPersistence(cfg)
	app.SetupRoutes(r, coordinator, uploads, opts)

	// Uploads are long-lived; silent bodies are cut off per read by the idle timeout instead.
	srv := &http.Server{
		Handler:           r,
		Addr:              cfg.addr,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shut down the server")
		}
	}()

	log.Info().Str("addr", cfg.addr).Str("upload_dir", cfg.uploadDir).Msg("the server started")
	if cfg.cert != "" && cfg.key != "" {
		err = srv.ListenAndServeTLS(cfg.cert, cfg.key)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("the server stopped")
	}
	log.Info().Msg("the server stopped")
}

// Choose where completed uploads are recorded and archived.
func setupPersistence(cfg *config) (repository.UploadRepository, app.Options) {
	opts := app.Options{IdleTimeout: cfg.idleTimeout}
	var uploads repository.UploadRepository = persistence.NewMemoryUploadRepository()
	if cfg.s3Bucket == "" && cfg.dynamoTable == "" {
		return uploads, opts
	}
	sess := session.Must(session.NewSession())
	if cfg.dynamoTable != "" {
		uploads = persistence.NewUploadRepository(sess, cfg.dynamoTable)
		log.Info().Str("table", cfg.dynamoTable).Msg("recording completed uploads in DynamoDB")
	}
	if cfg.s3Bucket != "" {
		opts.Archiver = persistence.NewArchiver(sess, cfg.s3Bucket)
		log.Info().Str("bucket", cfg.s3Bucket).Msg("archiving completed uploads to S3")
	}
	return uploads, opts
}
