package worker

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"
)

// =============================================================================
// DATA CLEANUP WORKER
// =============================================================================
// Removes finished campaign jobs, their recipient claims and, when a log
// retention is configured, old delivery logs.
//
// Retention:
//   - campaign_jobs (done/failed/cancelled): JobRetentionDays after run_at
//   - campaign_recipients (sent/failed):     JobRetentionDays after updated_at
//   - delivery_logs:                         LogRetentionDays, 0 keeps all
//
// Deletes run in batches so no statement holds locks for long.

const (
	// DefaultCleanupInterval is how often the cleanup cycle runs.
	DefaultCleanupInterval = 1 * time.Hour

	cleanupBatchSize = 5000
)

// CleanupResult counts the rows removed by one cycle.
type CleanupResult struct {
	Jobs       int64
	Recipients int64
	Logs       int64
}

// DataCleanupWorker periodically prunes old campaign and log rows.
type DataCleanupWorker struct {
	db         *sql.DB
	interval   time.Duration
	jobDays    int
	logDays    int
	batchPause time.Duration
}

// NewDataCleanupWorker creates a cleanup worker. A zero retention disables
// that table's cleanup.
func NewDataCleanupWorker(db *sql.DB, jobRetentionDays, logRetentionDays int) *DataCleanupWorker {
	return &DataCleanupWorker{
		db:         db,
		interval:   DefaultCleanupInterval,
		jobDays:    jobRetentionDays,
		logDays:    logRetentionDays,
		batchPause: 100 * time.Millisecond,
	}
}

// Start begins the cleanup loop. It blocks until ctx is cancelled.
func (dc *DataCleanupWorker) Start(ctx context.Context) {
	log.Printf("[DataCleanup] Starting (interval=%s, jobs=%dd, logs=%dd)", dc.interval, dc.jobDays, dc.logDays)

	dc.RunOnce(ctx)

	ticker := time.NewTicker(dc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[DataCleanup] Stopping")
			return
		case <-ticker.C:
			dc.RunOnce(ctx)
		}
	}
}

// RunOnce runs one cleanup cycle.
func (dc *DataCleanupWorker) RunOnce(ctx context.Context) CleanupResult {
	start := time.Now()
	var res CleanupResult

	if dc.jobDays > 0 {
		res.Jobs = dc.batchDelete(ctx, "campaign_jobs", `
			DELETE FROM campaign_jobs
			WHERE id IN (
				SELECT id FROM campaign_jobs
				WHERE status IN ('done', 'failed', 'cancelled')
				  AND run_at < NOW() - make_interval(days => $2)
				LIMIT $1
			)`, dc.jobDays)

		res.Recipients = dc.batchDelete(ctx, "campaign_recipients", `
			DELETE FROM campaign_recipients
			WHERE ctid IN (
				SELECT ctid FROM campaign_recipients
				WHERE status IN ('sent', 'failed')
				  AND updated_at < NOW() - make_interval(days => $2)
				LIMIT $1
			)`, dc.jobDays)
	}

	if dc.logDays > 0 {
		res.Logs = dc.batchDelete(ctx, "delivery_logs", `
			DELETE FROM delivery_logs
			WHERE id IN (
				SELECT id FROM delivery_logs
				WHERE created_at < NOW() - make_interval(days => $2)
				LIMIT $1
			)`, dc.logDays)
	}

	if res.Jobs+res.Recipients+res.Logs > 0 {
		log.Printf("[DataCleanup] Removed %d jobs, %d recipient claims, %d logs in %s",
			res.Jobs, res.Recipients, res.Logs, time.Since(start).Round(time.Millisecond))
	}
	return res
}

// batchDelete runs query with cleanupBatchSize as $1 and days as $2 until
// no rows are affected, and returns the total. A missing table is skipped.
func (dc *DataCleanupWorker) batchDelete(ctx context.Context, table, query string, days int) int64 {
	var total int64

	for {
		if ctx.Err() != nil {
			return total
		}

		queryCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		res, err := dc.db.ExecContext(queryCtx, query, cleanupBatchSize, days)
		cancel()

		if err != nil {
			if isTableNotExistsError(err) {
				log.Printf("[DataCleanup] Table %s does not exist, skipping", table)
				return total
			}
			log.Printf("[DataCleanup] Error deleting from %s: %v", table, err)
			return total
		}

		affected, _ := res.RowsAffected()
		total += affected
		if affected < cleanupBatchSize {
			return total
		}

		select {
		case <-ctx.Done():
			return total
		case <-time.After(dc.batchPause):
		}
	}
}

func isTableNotExistsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")
}
