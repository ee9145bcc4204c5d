package persist

import (
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/roach88/sheetsync/internal/queue"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Stats counts what a Persister has done so far.
type Stats struct {
	Written int64
	Removed int64
	Failed  int64
}

// Persister executes jobs in submission order on a single goroutine.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine, never blocks
//   - Run(): must be called from exactly one goroutine
type Persister struct {
	fs    FS
	queue *queue.Queue[Job]

	written atomic.Int64
	removed atomic.Int64
	failed  atomic.Int64

	// OnFailure is called from the worker for every failed job.
	OnFailure func(*JobError)
}

// NewPersister creates a persister over fs.
func NewPersister(fs FS) *Persister {
	return &Persister{fs: fs, queue: queue.New[Job]()}
}

// Submit enqueues jobs as one contiguous batch. Returns false after Close.
func (p *Persister) Submit(jobs ...Job) bool {
	if len(jobs) == 0 {
		return !p.queue.Closed()
	}
	return p.queue.EnqueueAll(jobs...)
}

// Close stops intake. Run finishes the jobs already queued and returns.
func (p *Persister) Close() {
	p.queue.Close()
}

// Pending is the number of queued jobs.
func (p *Persister) Pending() int {
	return p.queue.Len()
}

// Stats returns the running counters.
func (p *Persister) Stats() Stats {
	return Stats{
		Written: p.written.Load(),
		Removed: p.removed.Load(),
		Failed:  p.failed.Load(),
	}
}

// Run executes jobs until the persister is closed and drained. It does not
// watch a context: the final save round is submitted after the dispatch
// loop observes cancellation, and it must still reach disk.
func (p *Persister) Run() {
	slog.Debug("persister starting")
	for {
		job, ok := p.queue.Dequeue()
		if !ok {
			slog.Debug("persister stopping",
				"written", p.written.Load(),
				"removed", p.removed.Load(),
				"failed", p.failed.Load(),
			)
			return
		}
		p.execute(job)
	}
}

func (p *Persister) execute(job Job) {
	err := p.apply(job)
	if err == nil {
		if job.Remove {
			p.removed.Add(1)
		} else {
			p.written.Add(1)
		}
		return
	}

	p.failed.Add(1)
	jerr := &JobError{Job: job, Err: err}
	slog.Error("persistence failure",
		"path", job.Path,
		"remove", job.Remove,
		"error", err,
		"code", "PERSISTENCE_FAILURE",
	)
	if p.OnFailure != nil {
		p.OnFailure(jerr)
	}
}

func (p *Persister) apply(job Job) error {
	if job.Remove {
		return p.fs.Remove(job.Path)
	}
	if err := p.fs.MkdirAll(filepath.Dir(job.Path), dirPerm); err != nil {
		return err
	}
	return p.fs.WriteFile(job.Path, job.Data, filePerm)
}
