// Command adcmdr-server serves the bundle export/import API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/api"
	"github.com/adcommander/adcmdr-tools/internal/bundle"
	"github.com/adcommander/adcmdr-tools/internal/config"
	"github.com/adcommander/adcmdr-tools/internal/csvcodec"
	"github.com/adcommander/adcmdr-tools/internal/db"
	"github.com/adcommander/adcmdr-tools/internal/db/migrations"
	"github.com/adcommander/adcmdr-tools/internal/dbpool"
	"github.com/adcommander/adcmdr-tools/internal/media"
	"github.com/adcommander/adcmdr-tools/internal/nonce"
	"github.com/adcommander/adcmdr-tools/internal/objstore"
	"github.com/adcommander/adcmdr-tools/internal/sanitize"
	"github.com/adcommander/adcmdr-tools/internal/schema"
	"github.com/adcommander/adcmdr-tools/internal/service"
	"github.com/adcommander/adcmdr-tools/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid LOG_LEVEL")
	}
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.Options{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		return err
	}

	base := store.Base{Pool: pool, Log: log}
	posts := store.NewPostStore(base)
	groups := store.NewGroupStore(base)
	stats := store.NewStatsStore(base)

	registry := schema.NewRegistry(schema.DefaultPrefix)

	codec, err := csvcodec.New(cfg.CSVCharset)
	if err != nil {
		return err
	}

	mirror, err := objstore.New(objstore.Config{
		Endpoint:  cfg.Mirror.Endpoint,
		Bucket:    cfg.Mirror.Bucket,
		AccessKey: cfg.Mirror.AccessKey,
		SecretKey: cfg.Mirror.SecretKey.Value(),
		UseSSL:    cfg.Mirror.UseSSL,
		Prefix:    cfg.Mirror.Prefix,
	})
	if err != nil {
		return err
	}

	if s3, ok := mirror.(*objstore.S3Mirror); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			return err
		}
		log.WithField("bucket", cfg.Mirror.Bucket).Info("bundle mirror enabled")
	}

	nonces, err := nonce.NewService(cfg.NonceSecret.Value())
	if err != nil {
		return err
	}

	dirs := bundle.DirsFor(cfg.UploadsDir)
	packer := bundle.NewPacker(dirs.Export, codec)

	exporter := service.NewExporter(service.ExporterDeps{
		Registry: registry,
		Posts:    posts,
		Groups:   groups,
		Stats:    stats,
		Packer:   packer,
		Mirror:   mirror,
		SiteURL:  cfg.SiteURL,
		Log:      log,
	})

	importer := service.NewImporter(service.ImporterDeps{
		Registry:       registry,
		Sanitizer:      sanitize.New(registry),
		Codec:          codec,
		Unpacker:       bundle.NewUnpacker(dirs.Import),
		Posts:          posts,
		Groups:         groups,
		Stats:          stats,
		Images:         media.NewSideloader(posts, cfg.UploadsDir, cfg.SiteURL+"/uploads", log),
		FeaturedImages: cfg.FeaturedImages,
		SiteURL:        cfg.SiteURL,
		Log:            log,
	})

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:            log,
		Pool:           pool,
		Exports:        exporter,
		Imports:        importer,
		Bundles:        service.NewBundleManager(bundle.NewStore(dirs.Export), mirror, log),
		Stats:          service.NewStatsMaintenance(stats, log),
		Nonces:         nonces,
		ExportProbe:    packer.Probe,
		AdminAPIKey:    cfg.AdminAPIKey.Value(),
		CORSOrigins:    cfg.CORSOrigins,
		Version:        config.Version,
		SiteURL:        cfg.SiteURL,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		HSTS:           strings.HasPrefix(cfg.SiteURL, "https://"),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.WithFields(logrus.Fields{
			"addr":       cfg.Addr(),
			"version":    config.Version,
			"export_dir": dirs.Export,
		}).Info("server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}

	return nil
}
