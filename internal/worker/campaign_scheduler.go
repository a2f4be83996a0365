package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/metrics"
	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/distlock"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
	"github.com/ignite/campaign-dashboard/internal/recurrence"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
	"github.com/ignite/campaign-dashboard/internal/service/dispatch"
)

// =============================================================================
// CAMPAIGN SCHEDULER WORKER
// =============================================================================
// Polls campaign_jobs for due occurrences, leases them, and hands each to the
// dispatch service. Only the instance holding the scheduler lock polls.
//
// - A crashed run's lease expires and the job is claimed again; recipient
//   claims keep the re-run from mailing anyone twice, and claims the dead
//   run never marked are taken over once they are a lease old.
// - After a successful occurrence of a recurring campaign the next
//   occurrence is queued before the current job is completed.
// - A job that fails MaxAttempts times is failed and its campaign ends in
//   error.

const (
	// DefaultSchedulerPollInterval is how often due jobs are claimed.
	DefaultSchedulerPollInterval = 30 * time.Second

	// DefaultJobLease is how long a claimed job is reserved for one run.
	DefaultJobLease = 10 * time.Minute

	// DefaultMaxAttempts bounds the runs of one job.
	DefaultMaxAttempts = 5

	// DefaultRetryBackoff is multiplied by the attempt number.
	DefaultRetryBackoff = time.Minute

	// ClaimBatchSize is how many due jobs one poll takes.
	ClaimBatchSize = 20

	// SchedulerLockKey names the leader lock.
	SchedulerLockKey = "campaign-scheduler"
)

// JobStore is the job queue the scheduler drains.
type JobStore interface {
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.CampaignJob, error)
	Create(ctx context.Context, j *domain.CampaignJob) error
	Complete(ctx context.Context, id string) error
	Retry(ctx context.Context, id string, runAt time.Time, lastError string) error
	Fail(ctx context.Context, id, lastError string) error
}

// Runner sends one scheduled occurrence.
type Runner interface {
	RunScheduled(ctx context.Context, job domain.CampaignJob, lastAttempt bool) (*dispatch.CampaignResult, error)
}

// Job outcomes recorded in metrics.
const (
	JobResultDone   = "done"
	JobResultRetry  = "retry"
	JobResultFailed = "failed"
	JobResultStale  = "stale"
)

// CampaignScheduler runs due campaign jobs.
type CampaignScheduler struct {
	jobs    JobStore
	runner  Runner
	lock    distlock.DistLock
	metrics *metrics.Metrics

	workerID     string
	pollInterval time.Duration
	lease        time.Duration
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time

	// Stats
	jobsProcessed int64
	jobsFailed    int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// SchedulerOption configures a CampaignScheduler.
type SchedulerOption func(*CampaignScheduler)

// WithPollInterval overrides DefaultSchedulerPollInterval.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(cs *CampaignScheduler) {
		if d > 0 {
			cs.pollInterval = d
		}
	}
}

// WithLease overrides DefaultJobLease.
func WithLease(d time.Duration) SchedulerOption {
	return func(cs *CampaignScheduler) {
		if d > 0 {
			cs.lease = d
		}
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) SchedulerOption {
	return func(cs *CampaignScheduler) {
		if n > 0 {
			cs.maxAttempts = n
		}
	}
}

// WithRetryBackoff overrides DefaultRetryBackoff.
func WithRetryBackoff(d time.Duration) SchedulerOption {
	return func(cs *CampaignScheduler) { cs.retryBackoff = d }
}

// WithSchedulerMetrics records job outcomes.
func WithSchedulerMetrics(m *metrics.Metrics) SchedulerOption {
	return func(cs *CampaignScheduler) { cs.metrics = m }
}

// NewCampaignScheduler creates a scheduler. lock elects the single polling
// instance; see distlock.NewLock.
func NewCampaignScheduler(jobs JobStore, runner Runner, lock distlock.DistLock, opts ...SchedulerOption) *CampaignScheduler {
	cs := &CampaignScheduler{
		jobs:         jobs,
		runner:       runner,
		lock:         lock,
		workerID:     fmt.Sprintf("scheduler-%s-%d", getHostname(), time.Now().UnixNano()%10000),
		pollInterval: DefaultSchedulerPollInterval,
		lease:        DefaultJobLease,
		maxAttempts:  DefaultMaxAttempts,
		retryBackoff: DefaultRetryBackoff,
		now:          time.Now,
	}
	for _, o := range opts {
		o(cs)
	}
	return cs
}

// Start begins the polling loop.
func (cs *CampaignScheduler) Start() error {
	cs.mu.Lock()
	if cs.running {
		cs.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	cs.running = true
	cs.ctx, cs.cancel = context.WithCancel(context.Background())
	cs.mu.Unlock()

	log.Printf("[CampaignScheduler] %s starting with poll interval: %v", cs.workerID, cs.pollInterval)

	cs.wg.Add(1)
	go cs.schedulerLoop()
	return nil
}

// Stop waits for the current poll to finish and gives up leadership.
func (cs *CampaignScheduler) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	cs.mu.Unlock()

	log.Printf("[CampaignScheduler] Stopping...")
	cs.cancel()
	cs.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cs.lock.Release(ctx); err != nil && !errors.Is(err, distlock.ErrNotHeld) {
		logger.Warn("scheduler: release lock failed", "error", err)
	}
	log.Printf("[CampaignScheduler] Stopped. Processed: %d jobs, Failed: %d",
		atomic.LoadInt64(&cs.jobsProcessed), atomic.LoadInt64(&cs.jobsFailed))
}

// Running reports whether the loop is active.
func (cs *CampaignScheduler) Running() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.running
}

func (cs *CampaignScheduler) schedulerLoop() {
	defer cs.wg.Done()

	cs.RunOnce(cs.ctx)

	ticker := time.NewTicker(cs.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cs.ctx.Done():
			return
		case <-ticker.C:
			cs.RunOnce(cs.ctx)
		}
	}
}

// RunOnce claims and runs the jobs due now if this instance is the leader.
// It returns the number of jobs run.
func (cs *CampaignScheduler) RunOnce(ctx context.Context) int {
	leader, err := cs.lock.Acquire(ctx)
	if err != nil {
		logger.Warn("scheduler: lock acquire failed", "worker", cs.workerID, "error", err)
		return 0
	}
	if !leader {
		return 0
	}

	jobs, err := cs.jobs.ClaimDue(ctx, cs.now(), cs.lease, ClaimBatchSize)
	if err != nil {
		logger.Error("scheduler: claim due jobs failed", "error", err)
		return 0
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		cs.processJob(ctx, job)
	}
	return len(jobs)
}

func (cs *CampaignScheduler) processJob(ctx context.Context, job domain.CampaignJob) {
	runCtx, cancel := context.WithTimeout(ctx, cs.lease)
	defer cancel()

	lastAttempt := job.Attempts >= cs.maxAttempts
	log.Printf("[CampaignScheduler] Running campaign %s occurrence %d (attempt %d/%d)",
		job.CampaignID, job.Occurrence, job.Attempts, cs.maxAttempts)

	res, err := cs.runner.RunScheduled(runCtx, job, lastAttempt)
	atomic.AddInt64(&cs.jobsProcessed, 1)

	// Job bookkeeping must survive a cancelled poll.
	bg, done := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer done()

	switch {
	case err == nil:
		if job.HasNext() {
			cs.queueNext(bg, job)
		}
		if err := cs.jobs.Complete(bg, job.ID); err != nil {
			logger.Error("scheduler: complete job failed", "job_id", job.ID, "error", err)
		}
		cs.metrics.RecordJob(JobResultDone)
		log.Printf("[CampaignScheduler] Campaign %s occurrence %d done: sent=%d failed=%d skipped=%d",
			job.CampaignID, job.Occurrence, res.Sent, res.Failed, res.Skipped)

	case errors.Is(err, dispatch.ErrStaleJob) || errors.Is(err, campaign.ErrNotFound):
		cs.fail(bg, job, err, JobResultStale)

	case lastAttempt || apperr.Is(err, apperr.KindValidation):
		cs.fail(bg, job, err, JobResultFailed)

	default:
		runAt := cs.now().Add(cs.retryBackoff * time.Duration(job.Attempts))
		if rerr := cs.jobs.Retry(bg, job.ID, runAt, err.Error()); rerr != nil {
			logger.Error("scheduler: retry job failed", "job_id", job.ID, "error", rerr)
		}
		cs.metrics.RecordJob(JobResultRetry)
		logger.Warn("scheduler: occurrence failed, will retry",
			"campaign_id", job.CampaignID, "occurrence", job.Occurrence, "attempt", job.Attempts, "error", err)
	}
}

func (cs *CampaignScheduler) fail(ctx context.Context, job domain.CampaignJob, err error, result string) {
	atomic.AddInt64(&cs.jobsFailed, 1)
	if ferr := cs.jobs.Fail(ctx, job.ID, err.Error()); ferr != nil {
		logger.Error("scheduler: fail job failed", "job_id", job.ID, "error", ferr)
	}
	cs.metrics.RecordJob(result)
	logger.Error("scheduler: occurrence abandoned",
		"campaign_id", job.CampaignID, "occurrence", job.Occurrence, "result", result, "error", err)
}

// queueNext inserts the following occurrence of a recurring campaign. The
// next time follows the planned time of job, not the time a retry ran it.
func (cs *CampaignScheduler) queueNext(ctx context.Context, job domain.CampaignJob) {
	at, err := recurrence.Next(job.RepeatInterval, job.NominalTime())
	if err != nil {
		logger.Error("scheduler: next run time failed", "campaign_id", job.CampaignID, "interval", job.RepeatInterval, "error", err)
		return
	}
	next := &domain.CampaignJob{
		ID:             uuid.New().String(),
		CampaignID:     job.CampaignID,
		OwnerID:        job.OwnerID,
		RunAt:          at,
		ScheduledFor:   at,
		RepeatInterval: job.RepeatInterval,
		RemainingRuns:  job.RemainingRuns - 1,
		Occurrence:     job.Occurrence + 1,
		Status:         domain.JobPending,
	}
	if err := cs.jobs.Create(ctx, next); err != nil {
		logger.Error("scheduler: queue next occurrence failed", "campaign_id", job.CampaignID, "error", err)
		return
	}
	log.Printf("[CampaignScheduler] Campaign %s occurrence %d queued for %s (%d runs left)",
		job.CampaignID, next.Occurrence, at.Format(time.RFC3339), next.RemainingRuns)
}

func getHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "campaign-worker"
	}
	return h
}
