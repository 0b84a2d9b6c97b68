package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/enrich"
	"github.com/appshelf/appshelf/pkg/joblogs"
	"github.com/appshelf/appshelf/pkg/jobs"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/appshelf/appshelf/pkg/scanstate"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Worker is the single consumer of the scan queue. It runs one job at a time
// and always reports the outcome back to the scan state, even when a job
// panics.
type Worker struct {
	config *config.Config
	log    logger.Logger

	state    *scanstate.State
	enricher *enrich.Enricher

	catalogService *catalog.Service
	jobService     *jobs.Service
	jobLogService  *joblogs.Service

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg *config.Config, db *bun.DB, state *scanstate.State, enricher *enrich.Enricher) *Worker {
	return &Worker{
		config: cfg,
		log:    logger.New(),

		state:    state,
		enricher: enricher,

		catalogService: catalog.NewService(db),
		jobService:     jobs.NewService(db),
		jobLogService:  joblogs.NewService(db),

		done: make(chan struct{}),
	}
}

func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx)
}

// Shutdown stops waiting for new jobs. A job that is already running is
// allowed to finish first.
func (w *Worker) Shutdown() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	for {
		job, err := w.state.AwaitNext(ctx)
		if err != nil {
			if !errors.Is(err, scanstate.ErrCancelled) {
				w.log.Err(err).Error("await job error")
			}
			return
		}
		w.process(job)
	}
}

// process runs one job. Runs are deliberately detached from the loop
// context so shutdown does not cut a scan off halfway.
func (w *Worker) process(job scanstate.Job) {
	id, err := uuid.NewRandom()
	if err != nil {
		w.log.Err(err).Error("new uuid error")
		w.state.Finish(scanstate.Result{Err: err})
		return
	}
	log := w.log.ID(id.String()).Root(logger.Data{"type": job.Kind.String(), "root": job.Root})
	ctx := log.WithContext(context.Background())

	record := &models.Job{Type: jobType(job.Kind), Status: models.JobStatusInProgress}
	if job.Root != "" {
		root := job.Root
		record.RootPath = &root
	}
	if err := w.jobService.CreateJob(ctx, record); err != nil {
		log.Err(err).Error("create job error")
		w.state.AppendLog(fmt.Sprintf("CRITICAL: could not record job: %v", err))
		w.state.Finish(scanstate.Result{Err: err})
		return
	}

	jl := w.jobLogService.NewJobLogger(ctx, record.ID, log, w.state)

	var result scanstate.Result
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("panic: %v", r)
			jl.Fatal("job crashed", err, nil)
			result = scanstate.Result{Err: err}
		}
		w.complete(ctx, record, result)
		w.state.Finish(result)
	}()

	switch job.Kind {
	case scanstate.KindDeduplicate:
		result = w.runDeduplicate(ctx, jl)
	default:
		result = w.runScan(ctx, jl, job.Root)
	}
}

func (w *Worker) runScan(ctx context.Context, jl RunLogger, root string) scanstate.Result {
	res, err := w.ScanFolder(ctx, jl, root)
	result := scanstate.Result{}
	if res != nil {
		result.Added = res.Added
		result.Deleted = res.Deleted
	}
	switch {
	case errors.Is(err, ErrUnsafeAbort):
		result.Aborted = true
	case err != nil:
		jl.Error("scan failed", err, nil)
		result.Err = err
	}
	return result
}

func (w *Worker) complete(ctx context.Context, record *models.Job, result scanstate.Result) {
	now := time.Now()
	record.FinishedAt = &now
	record.AddedCount = result.Added
	record.DeletedCount = result.Deleted
	record.MergedCount = result.Merged
	switch {
	case result.Err != nil:
		record.Status = models.JobStatusFailed
		msg := result.Err.Error()
		record.Error = &msg
	case result.Aborted:
		record.Status = models.JobStatusAborted
	default:
		record.Status = models.JobStatusCompleted
	}

	err := w.jobService.UpdateJob(ctx, record, jobs.UpdateJobOptions{
		Columns: []string{"status", "finished_at", "added_count", "deleted_count", "merged_count", "error"},
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Error("update job error")
	}
}

func jobType(k scanstate.Kind) string {
	if k == scanstate.KindDeduplicate {
		return models.JobTypeDeduplicate
	}
	return models.JobTypeScan
}
