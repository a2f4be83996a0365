// Package sending turns resolved contacts into provider-sized batches and
// defines the delivery interfaces the dispatch layer depends on.
//
// The SendGrid client in internal/sendgrid implements BatchSender. Tests use
// in-memory fakes.
package sending

import (
	"context"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Sender sends a single email. Implementations must be safe for concurrent
// use.
type Sender interface {
	Send(ctx context.Context, msg domain.Message) (string, error)
}

// BatchSender extends Sender with one-call delivery of a whole Batch.
type BatchSender interface {
	Sender
	SendBatch(ctx context.Context, batch domain.Batch) (string, error)
	MaxBatchSize() int
}

// SuppressionChecker performs a pre-send suppression check.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, ownerID, email string) (bool, error)
}
