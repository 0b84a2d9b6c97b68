package worker

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/appshelf/appshelf/pkg/enrich"
	"github.com/appshelf/appshelf/pkg/joblogs"
	"github.com/appshelf/appshelf/pkg/jobs"
	"github.com/appshelf/appshelf/pkg/models"
	"github.com/appshelf/appshelf/pkg/scanstate"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (tc *testContext) start() {
	tc.t.Helper()
	tc.worker.Start()
	tc.t.Cleanup(tc.worker.Shutdown)
}

func (tc *testContext) wait(ticket *scanstate.Ticket) scanstate.Result {
	tc.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := ticket.Wait(ctx)
	require.NoError(tc.t, err)
	return result
}

func (tc *testContext) lastJob() *models.Job {
	tc.t.Helper()
	list, err := jobs.NewService(tc.db).ListJobs(tc.ctx, jobs.ListJobsOptions{Limit: pointerutil.Int(1)})
	require.NoError(tc.t, err)
	require.Len(tc.t, list, 1)
	return list[0]
}

func TestWorker_RunsScans(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t, nil)
	tc.file("Chrome/114.0/setup.exe")
	tc.start()

	ticket, err := tc.state.RequestScan(tc.root)
	require.NoError(t, err)
	result := tc.wait(ticket)

	assert.NoError(t, result.Err)
	assert.Equal(t, 1, result.Added)

	snap := tc.state.Snapshot()
	assert.False(t, snap.IsScanning)
	assert.Equal(t, "Scan completed", snap.Status)
	assert.True(t, strings.HasSuffix(snap.Logs[len(snap.Logs)-1], "Done."))

	job := tc.lastJob()
	assert.Equal(t, models.JobTypeScan, job.Type)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.AddedCount)
	assert.Equal(t, tc.root, *job.RootPath)
	assert.NotNil(t, job.FinishedAt)

	logs, err := joblogs.NewService(tc.db).ListJobLogs(tc.ctx, joblogs.ListJobLogsOptions{JobID: job.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, logs)

	// The next request is accepted once the first has finished.
	ticket, err = tc.state.RequestScan(tc.root)
	require.NoError(t, err)
	assert.Equal(t, 0, tc.wait(ticket).Added)
}

func TestWorker_SafetyAbortMarksJobAborted(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t, nil)
	paths := []string{}
	for i := 0; i < 12; i++ {
		paths = append(paths, filepath.Join(tc.root, "App", strings.Repeat("a", i+1)+".exe"))
	}
	tc.seed(&models.Profile{Name: "App"}, paths...)
	tc.start()

	ticket, err := tc.state.RequestScan(tc.root)
	require.NoError(t, err)
	result := tc.wait(ticket)

	assert.True(t, result.Aborted)
	assert.NoError(t, result.Err)
	assert.Equal(t, "Scan aborted", tc.state.Snapshot().Status)
	assert.Equal(t, models.JobStatusAborted, tc.lastJob().Status)
	assert.Len(t, tc.installers(), 12)

	found := false
	for _, line := range tc.state.Snapshot().Logs {
		if strings.Contains(line, "SAFETY ABORT") {
			found = true
		}
	}
	assert.True(t, found, "abort is visible in the status log")
}

func TestWorker_RecoversFromPanics(t *testing.T) {
	t.Parallel()
	searcher := &fakeSearcher{panics: true}
	tc := newTestContext(t, enrich.New(searcher, nil, nil))
	tc.file("Chrome/114.0/setup.exe")
	tc.start()

	ticket, err := tc.state.RequestScan(tc.root)
	require.NoError(t, err)
	result := tc.wait(ticket)

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "metadata source exploded")
	assert.False(t, tc.state.IsScanning())
	assert.Equal(t, "Scan failed", tc.state.Snapshot().Status)

	job := tc.lastJob()
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)

	fatal, err := joblogs.NewService(tc.db).ListJobLogs(tc.ctx, joblogs.ListJobLogsOptions{
		JobID:  job.ID,
		Levels: []string{models.JobLogLevelFatal},
	})
	require.NoError(t, err)
	assert.Len(t, fatal, 1)

	// The loop keeps serving requests.
	searcher.mu.Lock()
	searcher.panics = false
	searcher.mu.Unlock()
	ticket, err = tc.state.RequestScan(tc.root)
	require.NoError(t, err)
	assert.Equal(t, 1, tc.wait(ticket).Added)
}

func TestWorker_Deduplicates(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t, nil)
	tc.seed(&models.Profile{Name: "Firefox", PackageID: pointerutil.String("firefox")}, "/srv/a/firefox-1.exe", "/srv/a/firefox-2.exe")
	tc.seed(&models.Profile{Name: "Mozilla Firefox", PackageID: pointerutil.String("Firefox")}, "/srv/b/firefox-3.exe")
	tc.start()

	ticket, err := tc.state.RequestDeduplication()
	require.NoError(t, err)
	result := tc.wait(ticket)

	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, "Duplicate merge completed", tc.state.Snapshot().Status)
	profiles := tc.profiles()
	require.Len(t, profiles, 1)
	assert.Len(t, profiles[0].Installers, 3)

	job := tc.lastJob()
	assert.Equal(t, models.JobTypeDeduplicate, job.Type)
	assert.Equal(t, 1, job.MergedCount)
	assert.Nil(t, job.RootPath)
}

func TestWorker_ShutdownWhileIdle(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t, nil)
	tc.worker.Start()

	done := make(chan struct{})
	go func() {
		tc.worker.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return")
	}
}
