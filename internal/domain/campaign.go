package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignError     CampaignStatus = "error"
)

// campaignTransitions lists the allowed forward moves. sending -> scheduled
// only happens between occurrences of a recurring schedule.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:     {CampaignScheduled, CampaignSending},
	CampaignScheduled: {CampaignSending, CampaignDraft},
	CampaignSending:   {CampaignSent, CampaignError, CampaignScheduled},
}

// Valid reports whether s is a known status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignScheduled, CampaignSending, CampaignSent, CampaignError:
		return true
	}
	return false
}

// CanTransition reports whether a campaign may move from s to next.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Campaign is a send of one template to a resolved set of contacts.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	OwnerID        string         `json:"owner_id" db:"owner_id"`
	Name           string         `json:"name" db:"name"`
	Subject        string         `json:"subject" db:"subject"`
	TemplateID     string         `json:"template_id" db:"template_id"`
	TargetTags     []string       `json:"target_tags" db:"target_tags"`
	SegmentID      *string        `json:"segment_id,omitempty" db:"segment_id"`
	Status         CampaignStatus `json:"status" db:"status"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty" db:"scheduled_at"`
	RepeatInterval string         `json:"repeat_interval,omitempty" db:"repeat_interval"`
	RepeatCount    int            `json:"repeat_count" db:"repeat_count"`

	// ActiveOccurrence is the run that moved the campaign to sending; 0 is
	// an immediate send.
	ActiveOccurrence int `json:"active_occurrence" db:"active_occurrence"`

	// Stats (read-only, maintained by dispatch)
	SentCount   int    `json:"sent_count" db:"sent_count"`
	FailedCount int    `json:"failed_count" db:"failed_count"`
	LastError   string `json:"last_error,omitempty" db:"last_error"`

	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignError
}

// JobStatus enumerates the lifecycle of a scheduled campaign run.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// CampaignJob is one durable occurrence of a scheduled campaign.
type CampaignJob struct {
	ID             string     `json:"id" db:"id"`
	CampaignID     string     `json:"campaign_id" db:"campaign_id"`
	OwnerID        string     `json:"owner_id" db:"owner_id"`
	RunAt          time.Time  `json:"run_at" db:"run_at"`
	ScheduledFor   time.Time  `json:"scheduled_for" db:"scheduled_for"`
	RepeatInterval string     `json:"repeat_interval,omitempty" db:"repeat_interval"`
	RemainingRuns  int        `json:"remaining_runs" db:"remaining_runs"`
	Occurrence     int        `json:"occurrence" db:"occurrence"`
	Status         JobStatus  `json:"status" db:"status"`
	Attempts       int        `json:"attempts" db:"attempts"`
	LastError      string     `json:"last_error,omitempty" db:"last_error"`
	LeaseUntil     *time.Time `json:"lease_until,omitempty" db:"lease_until"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// NominalTime is the time the occurrence was planned for. Retries move
// RunAt but not the nominal time, so the series keeps its cadence.
func (j *CampaignJob) NominalTime() time.Time {
	if j.ScheduledFor.IsZero() {
		return j.RunAt
	}
	return j.ScheduledFor
}

// HasNext reports whether another occurrence follows this one.
func (j *CampaignJob) HasNext() bool {
	return j.RepeatInterval != "" && j.RemainingRuns > 1
}

// RecipientStatus enumerates per-recipient outcomes inside a campaign run.
type RecipientStatus string

const (
	RecipientClaimed RecipientStatus = "claimed"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

// CampaignRecipient records one address claimed by a campaign occurrence.
type CampaignRecipient struct {
	CampaignID string          `json:"campaign_id" db:"campaign_id"`
	Occurrence int             `json:"occurrence" db:"occurrence"`
	Email      string          `json:"email" db:"email"`
	Status     RecipientStatus `json:"status" db:"status"`
	MessageID  string          `json:"message_id,omitempty" db:"message_id"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}
