// Package scanstate owns the scan lifecycle: whether a run is in flight, its
// progress, a short rolling log, and the one-slot handoff queue between the
// API and the worker. At most one job is in flight at a time.
package scanstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MaxLogEntries is how many log lines are kept; older lines are evicted first.
const MaxLogEntries = 50

var (
	ErrAlreadyRunning = errors.New("a scan is already running")
	ErrCancelled      = errors.New("waiting for the next job was cancelled")
)

type Kind int

const (
	KindScan Kind = iota
	KindDeduplicate
)

func (k Kind) String() string {
	if k == KindDeduplicate {
		return "deduplicate"
	}
	return "scan"
}

// label is how the kind is named in status lines.
func (k Kind) label() string {
	if k == KindDeduplicate {
		return "Duplicate merge"
	}
	return "Scan"
}

// Job is one unit of work handed to the worker. Deduplication jobs carry no
// root path.
type Job struct {
	Kind Kind
	Root string
}

// Result is what a finished job reports back to whoever requested it.
type Result struct {
	Added   int
	Deleted int
	Merged  int
	Aborted bool
	Err     error
}

// Ticket is handed to the requester of an accepted job and is released when
// the worker calls Finish.
type Ticket struct {
	done   chan struct{}
	result Result
}

// Wait blocks until the job finishes or ctx is done.
func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, errors.WithStack(ctx.Err())
	}
}

type Snapshot struct {
	IsScanning bool     `json:"is_scanning"`
	Processed  int      `json:"processed"`
	Total      int      `json:"total"`
	Status     string   `json:"status"`
	Logs       []string `json:"logs"`
}

type State struct {
	mu        sync.Mutex
	running   bool
	processed int
	total     int
	status    string
	kind      Kind
	ticket    *Ticket

	logs     [MaxLogEntries]string
	logStart int
	logCount int

	queue chan Job
	now   func() time.Time
}

func New() *State {
	return &State{
		status: "Idle",
		queue:  make(chan Job, 1),
		now:    time.Now,
	}
}

// RequestScan queues a scan of root. It fails with ErrAlreadyRunning while
// another job is in flight.
func (s *State) RequestScan(root string) (*Ticket, error) {
	return s.request(Job{Kind: KindScan, Root: root}, fmt.Sprintf("Starting scan of %s", root))
}

// RequestDeduplication queues a duplicate merge pass. It shares the
// single-flight slot with scans.
func (s *State) RequestDeduplication() (*Ticket, error) {
	return s.request(Job{Kind: KindDeduplicate}, "Starting duplicate merge")
}

func (s *State) request(job Job, startLine string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, ErrAlreadyRunning
	}

	select {
	case s.queue <- job:
	default:
		// A job is still waiting for the worker.
		return nil, ErrAlreadyRunning
	}

	s.running = true
	s.kind = job.Kind
	s.processed = 0
	s.total = 0
	s.status = "Queued"
	s.logStart = 0
	s.logCount = 0
	s.appendLocked(startLine)
	s.ticket = &Ticket{done: make(chan struct{})}

	return s.ticket, nil
}

// AwaitNext blocks until a job is queued. It returns ErrCancelled once ctx is
// done.
func (s *State) AwaitNext(ctx context.Context) (Job, error) {
	select {
	case job := <-s.queue:
		return job, nil
	case <-ctx.Done():
		return Job{}, errors.Wrap(ErrCancelled, ctx.Err().Error())
	}
}

func (s *State) ReportProgress(processed, total int, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = processed
	s.total = total
	s.status = label
}

func (s *State) AppendLog(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(message)
}

func (s *State) appendLocked(message string) {
	line := fmt.Sprintf("[%s] %s", s.now().Format("15:04:05"), message)
	if s.logCount < MaxLogEntries {
		s.logs[(s.logStart+s.logCount)%MaxLogEntries] = line
		s.logCount++
		return
	}
	s.logs[s.logStart] = line
	s.logStart = (s.logStart + 1) % MaxLogEntries
}

// Finish marks the in-flight job as done and releases its ticket. Calling it
// when nothing is running is a no-op.
func (s *State) Finish(result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	switch {
	case result.Err != nil:
		s.status = s.kind.label() + " failed"
	case result.Aborted:
		s.status = s.kind.label() + " aborted"
	default:
		s.status = s.kind.label() + " completed"
	}
	s.appendLocked("Done.")

	if s.ticket != nil {
		s.ticket.result = result
		close(s.ticket.done)
		s.ticket = nil
	}
}

func (s *State) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := make([]string, s.logCount)
	for i := 0; i < s.logCount; i++ {
		logs[i] = s.logs[(s.logStart+i)%MaxLogEntries]
	}
	return Snapshot{
		IsScanning: s.running,
		Processed:  s.processed,
		Total:      s.total,
		Status:     s.status,
		Logs:       logs,
	}
}
