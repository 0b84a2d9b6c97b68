package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/database"
	"github.com/appshelf/appshelf/pkg/enrich"
	"github.com/appshelf/appshelf/pkg/images"
	"github.com/appshelf/appshelf/pkg/jobs"
	"github.com/appshelf/appshelf/pkg/metadata"
	"github.com/appshelf/appshelf/pkg/migrations"
	"github.com/appshelf/appshelf/pkg/packager"
	"github.com/appshelf/appshelf/pkg/scanstate"
	"github.com/appshelf/appshelf/pkg/server"
	"github.com/appshelf/appshelf/pkg/translate"
	"github.com/appshelf/appshelf/pkg/version"
	"github.com/appshelf/appshelf/pkg/worker"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()
	ctx = log.WithContext(ctx)

	log.Info("starting appshelf", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	if err := initDataDir(cfg); err != nil {
		log.Err(err).Fatal("data directory error")
	}

	// Two instances scanning the same folders would fight over the catalog.
	lock := flock.New(filepath.Join(cfg.DataDir, "appshelf.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Err(err).Fatal("lock error")
	}
	if !locked {
		log.Fatal("another appshelf instance is using the data directory", logger.Data{"data_dir": cfg.DataDir})
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Err(err).Error("unlock error")
		}
	}()

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	// Jobs left running by a previous process can never finish.
	n, err := jobs.NewService(db).FailInterruptedJobs(ctx)
	if err != nil {
		log.Err(err).Fatal("job cleanup error")
	}
	if n > 0 {
		log.Warn("marked interrupted jobs as failed", logger.Data{"count": n})
	}

	client := &http.Client{Timeout: cfg.MetadataHTTPTimeout}

	translator, err := translate.New(translate.Options{
		HTTPClient: client,
		Target:     cfg.TranslateTargetLanguage,
	})
	if err != nil {
		log.Err(err).Fatal("translator error")
	}

	imageService, err := images.New(ctx, cfg, client)
	if err != nil {
		log.Err(err).Fatal("image storage error")
	}
	log.Info("image storage ready", logger.Data{"backend": cfg.ImagesBackend})

	aggregator := metadata.New(metadata.Options{
		HTTPClient: client,
		UserAgent:  cfg.MetadataUserAgent,
		Locale:     cfg.TranslateTargetLanguage,
	})
	enricher := enrich.New(aggregator, translator, imageService)

	state := scanstate.New()
	wrkr := worker.New(cfg, db, state, enricher)

	srv, err := server.New(cfg, db, server.Dependencies{
		ScanState: state,
		Enricher:  enricher,
		Images:    imageService,
		Packager:  packager.New(cfg),
	})
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		log.Info("server started", logger.Data{"addr": srv.Addr})
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	// A scan in progress runs to completion before the worker stops.
	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// initDataDir creates the data directories and verifies write permissions.
func initDataDir(cfg *config.Config) error {
	dirs := []string{cfg.DataDir, cfg.PackagesDir()}
	if cfg.ImagesBackend != config.ImagesBackendMinio {
		dirs = append(dirs, cfg.ImagesDir())
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory: %s", dir)
		}
	}

	testFile := filepath.Join(cfg.DataDir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return errors.Wrapf(err, "data directory is not writable: %s", cfg.DataDir)
	}
	f.Close()

	if err := os.Remove(testFile); err != nil {
		return errors.Wrapf(err, "failed to clean up write test file: %s", testFile)
	}

	return nil
}
