// Package jobs owns the asynchronous lifecycle of reconciliation runs:
// submission, the worker pool, status transitions and the recovery sweep.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"pavssv/internal/artifact"
	"pavssv/internal/engine"
	"pavssv/internal/logger"
	"pavssv/internal/store"
)

// ErrBusy: the work queue is at capacity and the submission was not accepted.
var ErrBusy = errors.New("job queue full, retry later")

// Submission is one validated request to reconcile a period.
type Submission struct {
	OrgID   string
	Period  engine.Period
	Planned InputFile
	Actual  InputFile
}

// InputFile carries the original upload plus its parsed table. Raw bytes are
// retained in blob storage for audit; the parsed table feeds the pipeline.
type InputFile struct {
	Name  string
	Bytes []byte
	Table [][]string
}

type task struct {
	jobID   string
	orgID   string
	period  engine.Period
	planned [][]string
	actual  [][]string
}

// Orchestrator runs the pipeline behind a fixed worker pool. One job per
// worker at a time; the pipeline itself stays single-threaded.
type Orchestrator struct {
	store  store.Store
	blob   store.BlobStore
	params engine.Params

	queue      chan task
	workers    int
	jobTimeout time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Config tunes the orchestrator. Zero fields fall back to defaults.
type Config struct {
	Workers    int
	QueueDepth int
	JobTimeout time.Duration
}

func NewOrchestrator(st store.Store, blob store.BlobStore, params engine.Params, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 32
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		store:      st,
		blob:       blob,
		params:     params,
		queue:      make(chan task, cfg.QueueDepth),
		workers:    cfg.Workers,
		jobTimeout: cfg.JobTimeout,
	}
}

// Start launches the worker pool.
func (o *Orchestrator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}
	audit(fmt.Sprintf("Reconciliation worker pool started (%d workers)", o.workers))
}

// Stop drains the pool. Queued jobs stay QUEUED; the recovery sweep picks
// them up after a restart.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	audit("Reconciliation worker pool stopped")
}

// Submit validates the request synchronously, persists the QUEUED job and
// enqueues it. Returns the job id immediately; the caller polls status.
// Errors: *engine.SchemaError for bad headers, store.ErrConflict when a
// non-terminal job already holds the (org, period), ErrBusy on backpressure.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (store.Job, error) {
	if err := engine.ValidateHeader(engine.RolePlanned, sub.Planned.Table); err != nil {
		return store.Job{}, err
	}
	if err := engine.ValidateHeader(engine.RoleActual, sub.Actual.Table); err != nil {
		return store.Job{}, err
	}

	job := store.Job{
		ID:        uuid.NewString(),
		OrgID:     sub.OrgID,
		Period:    sub.Period.String(),
		Status:    store.JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	job.PlannedRef = fmt.Sprintf("jobs/%s/inputs/planned_%s", job.ID, sub.Planned.Name)
	job.ActualRef = fmt.Sprintf("jobs/%s/inputs/actual_%s", job.ID, sub.Actual.Name)

	if err := o.blob.Put(ctx, job.PlannedRef, sub.Planned.Bytes, "application/octet-stream"); err != nil {
		return store.Job{}, fmt.Errorf("store planned input: %w", err)
	}
	if err := o.blob.Put(ctx, job.ActualRef, sub.Actual.Bytes, "application/octet-stream"); err != nil {
		return store.Job{}, fmt.Errorf("store actual input: %w", err)
	}

	if err := o.store.CreateJob(ctx, job); err != nil {
		return store.Job{}, err
	}

	select {
	case o.queue <- task{jobID: job.ID, orgID: job.OrgID, period: sub.Period, planned: sub.Planned.Table, actual: sub.Actual.Table}:
	default:
		// Fail the row right away so the (org, period) slot frees up for the
		// retry instead of sitting QUEUED until the sweep ages it out.
		if terr := o.store.TransitionJob(ctx, job.ID, store.JobQueued, store.JobFailed, ErrBusy.Error()); terr != nil {
			log.Printf("ERROR: rejected job %s could not be marked failed: %v", job.ID, terr)
		}
		return store.Job{}, ErrBusy
	}
	audit(fmt.Sprintf("Job %s queued for org=%s period=%s", job.ID, job.OrgID, job.Period))
	return job, nil
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-o.queue:
			o.runJob(ctx, t)
		}
	}
}

func (o *Orchestrator) runJob(ctx context.Context, t task) {
	if err := o.store.TransitionJob(ctx, t.jobID, store.JobQueued, store.JobRunning, ""); err != nil {
		// Swept or raced; either way the job is no longer ours.
		audit(fmt.Sprintf("Job %s not started: %v", t.jobID, err))
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, o.jobTimeout)
	defer cancel()

	if err := o.execute(runCtx, t); err != nil {
		msg := userMessage(err)
		audit(fmt.Sprintf("Job %s failed: %v", t.jobID, err))
		log.Printf("ERROR: job %s failed: %v", t.jobID, err)
		if terr := o.store.TransitionJob(context.Background(), t.jobID, store.JobRunning, store.JobFailed, msg); terr != nil {
			log.Printf("ERROR: job %s could not be marked failed: %v", t.jobID, terr)
		}
		return
	}
	// Success is the last write: artifacts and the snapshot are already
	// durable when the status flips.
	if err := o.store.TransitionJob(ctx, t.jobID, store.JobRunning, store.JobSucceeded, ""); err != nil {
		log.Printf("ERROR: job %s could not be marked succeeded: %v", t.jobID, err)
		return
	}
	audit(fmt.Sprintf("Job %s succeeded for org=%s period=%s", t.jobID, t.orgID, t.period))
}

func (o *Orchestrator) execute(ctx context.Context, t task) error {
	res, err := engine.Run(t.planned, t.actual, t.period, o.params)
	if err != nil {
		return err
	}

	dataset, err := artifact.WriteDataset(res.Rows)
	if err != nil {
		return &engine.ProcessingError{Stage: "dataset artifact", Err: err}
	}
	report, err := artifact.WriteReport(res.Rows, res.Metrics)
	if err != nil {
		return &engine.ProcessingError{Stage: "report artifact", Err: err}
	}

	now := time.Now().UTC()
	for _, out := range []struct {
		kind string
		data []byte
	}{
		{artifact.KindDataset, dataset},
		{artifact.KindReport, report},
	} {
		ct, err := artifact.ContentType(out.kind)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("jobs/%s/artifacts/%s", t.jobID, out.kind)
		if err := o.blob.Put(ctx, key, out.data, ct); err != nil {
			return fmt.Errorf("store artifact %s: %w", out.kind, err)
		}
		if err := o.store.PutArtifact(ctx, store.ArtifactRef{
			JobID: t.jobID, Kind: out.kind, StorageKey: key,
			Size: int64(len(out.data)), CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("record artifact %s: %w", out.kind, err)
		}
	}

	payload, err := json.Marshal(res.Metrics)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := o.store.UpsertSnapshot(ctx, store.Snapshot{
		OrgID: t.orgID, Period: t.period.String(), JobID: t.jobID,
		Payload: payload, UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// userMessage maps an internal failure onto the message stored on the job
// record. Schema problems pass through verbatim, everything else is kept
// generic so internals never leak to the caller.
func userMessage(err error) string {
	var se *engine.SchemaError
	if errors.As(err, &se) {
		return se.Error()
	}
	var pe *engine.ProcessingError
	if errors.As(err, &pe) {
		return fmt.Sprintf("processing failed during %s", pe.Stage)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "processing timed out"
	}
	return "internal processing failure"
}

func audit(msg string) {
	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit(msg)
	}
}
