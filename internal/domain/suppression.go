package domain

import "time"

// SuppressionReason enumerates why an email was suppressed.
type SuppressionReason string

const (
	ReasonBounce      SuppressionReason = "bounce"
	ReasonSpam        SuppressionReason = "spam"
	ReasonUnsubscribe SuppressionReason = "unsubscribe"
	ReasonInvalid     SuppressionReason = "invalid"
	ReasonBlock       SuppressionReason = "block"
)

// Valid reports whether r is a known reason.
func (r SuppressionReason) Valid() bool {
	switch r {
	case ReasonBounce, ReasonSpam, ReasonUnsubscribe, ReasonInvalid, ReasonBlock:
		return true
	}
	return false
}

// Suppression excludes an address from future sends for its owner.
type Suppression struct {
	ID        string            `json:"id" db:"id"`
	OwnerID   string            `json:"owner_id" db:"owner_id"`
	Email     string            `json:"email" db:"email"`
	Reason    SuppressionReason `json:"reason" db:"reason"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
