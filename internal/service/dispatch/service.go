package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/metrics"
	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
	"github.com/ignite/campaign-dashboard/internal/recurrence"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
	"github.com/ignite/campaign-dashboard/internal/service/sending"
)

// ErrStaleJob is returned for a scheduled occurrence whose campaign is no
// longer waiting to be sent.
var ErrStaleJob = errors.New("campaign is not scheduled")

// DefaultClaimTimeout is how long a recipient claim may stay unmarked before
// another run of the same occurrence takes it over.
const DefaultClaimTimeout = 10 * time.Minute

// Deps are the collaborators of a Service.
type Deps struct {
	Sender       sending.BatchSender
	Campaigns    Campaigns
	Templates    Templates
	Contacts     Contacts
	Suppressions Suppressions
	Log          DeliveryLog
	Jobs         Jobs
	Recipients   Recipients
	Metrics      *metrics.Metrics

	// ClaimTimeout must not be shorter than the longest a scheduled run may
	// take, which is the scheduler's job lease.
	ClaimTimeout time.Duration
}

// Service orchestrates sending.
type Service struct {
	Deps
	now func() time.Time
}

// NewService creates a dispatch service.
func NewService(d Deps) *Service {
	if d.ClaimTimeout <= 0 {
		d.ClaimTimeout = DefaultClaimTimeout
	}
	return &Service{Deps: d, now: time.Now}
}

// SendEmailInput is the body of a single send.
type SendEmailInput struct {
	To      string `json:"to" validate:"required,email,max=320"`
	Subject string `json:"subject" validate:"required,max=998"`
	HTML    string `json:"html" validate:"required"`
}

// SendEmail delivers one message after checking the suppression list.
func (s *Service) SendEmail(ctx context.Context, userID string, in SendEmailInput) (*domain.SendResult, error) {
	to := domain.NormalizeEmail(in.To)
	details := map[string]any{"to": to, "subject": in.Subject}

	fail := func(err error) (*domain.SendResult, error) {
		details["error"] = err.Error()
		s.Log.Log(ctx, userID, domain.ActionSendEmail, domain.LogError, details)
		s.Metrics.RecordDispatch(domain.ActionSendEmail, string(domain.LogError), 1)
		return nil, err
	}

	if !domain.ValidEmail(to) {
		return fail(apperr.Validation("", "invalid recipient address"))
	}
	if strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.HTML) == "" {
		return fail(apperr.Validation("", "subject and html are required"))
	}
	suppressed, err := s.Suppressions.IsSuppressed(ctx, userID, to)
	if err != nil {
		return fail(apperr.Internal(fmt.Errorf("check suppression: %w", err)))
	}
	if suppressed {
		return fail(apperr.Validation(apperr.CodeRecipientSuppressed, "recipient is on the suppression list"))
	}

	id, err := s.Sender.Send(ctx, domain.Message{To: to, Subject: in.Subject, HTML: in.HTML})
	if err != nil {
		return fail(apperr.Provider(err))
	}

	res := &domain.SendResult{Success: true, MessageID: id, Timestamp: s.now().UTC()}
	details["messageId"] = id
	s.Log.Log(ctx, userID, domain.ActionSendEmail, domain.LogSuccess, details)
	s.Metrics.RecordDispatch(domain.ActionSendEmail, string(domain.LogSuccess), 1)
	return res, nil
}

// SendOptions tune an immediate campaign send.
type SendOptions struct {
	// SelectedTags overrides the campaign's target tags for this send.
	SelectedTags []string
}

// CampaignResult summarizes one campaign occurrence.
type CampaignResult struct {
	CampaignID string                `json:"campaign_id"`
	Occurrence int                   `json:"occurrence"`
	Status     domain.CampaignStatus `json:"status"`
	Recipients int                   `json:"recipients"`
	Suppressed int                   `json:"suppressed"`
	Skipped    int                   `json:"skipped"`
	Sent       int                   `json:"sent"`
	Failed     int                   `json:"failed"`
	Batches    int                   `json:"batches"`
	MessageIDs []string              `json:"message_ids"`
	Error      string                `json:"error,omitempty"`
}

// SendCampaign sends a draft or scheduled campaign now. The campaign ends
// sent, or error if nothing could be sent to or any batch failed. Once the
// campaign is sending, the run no longer follows ctx cancellation, so a
// dropped client cannot leave it half sent.
func (s *Service) SendCampaign(ctx context.Context, userID, campaignID string, opts SendOptions) (*CampaignResult, error) {
	c, err := s.Campaigns.BeginRun(ctx, userID, campaignID, 0)
	if err != nil {
		s.Log.Log(ctx, userID, domain.ActionSendCampaign, domain.LogError,
			map[string]any{"campaign_id": campaignID, "error": err.Error()})
		return nil, err
	}
	if tags := cleanTags(opts.SelectedTags); len(tags) > 0 {
		c.TargetTags = tags
	}
	ctx = context.WithoutCancel(ctx)
	if c.Status == domain.CampaignScheduled {
		if n, err := s.Jobs.CancelPending(ctx, userID, campaignID); err != nil {
			logger.Warn("dispatch: cancel pending jobs failed", "campaign_id", campaignID, "error", err)
		} else if n > 0 {
			logger.Info("dispatch: pending jobs superseded by immediate send", "campaign_id", campaignID, "jobs", n)
		}
	}

	res, runErr := s.run(ctx, c, 0)
	final := domain.CampaignSent
	if runErr != nil {
		final = domain.CampaignError
	}
	s.finish(ctx, c, res, final)
	return res, runErr
}

// RunScheduled sends one scheduled occurrence. lastAttempt says whether a
// failure is final; otherwise the campaign stays sending and the caller may
// retry the job. After a successful occurrence the campaign returns to
// scheduled when job.HasNext, and ends sent otherwise.
//
// A campaign already sending is only resumed when this occurrence started
// it; a campaign sent by anything else makes the job stale.
func (s *Service) RunScheduled(ctx context.Context, job domain.CampaignJob, lastAttempt bool) (*CampaignResult, error) {
	c, err := s.Campaigns.BeginRun(ctx, job.OwnerID, job.CampaignID, job.Occurrence)
	if errors.Is(err, campaign.ErrInvalidTransition) {
		return nil, fmt.Errorf("%w: %v", ErrStaleJob, err)
	}
	if err != nil {
		return nil, err
	}

	res, runErr := s.run(ctx, c, job.Occurrence)
	switch {
	case runErr == nil && job.HasNext():
		s.finish(ctx, c, res, domain.CampaignScheduled)
	case runErr == nil:
		s.finish(ctx, c, res, domain.CampaignSent)
	case lastAttempt || apperr.Is(runErr, apperr.KindValidation):
		s.finish(ctx, c, res, domain.CampaignError)
	default:
		// the retry will pick up the unsent recipients
		res.Status = domain.CampaignSending
		s.record(ctx, c, res)
	}
	return res, runErr
}

// run sends occurrence of c to its current audience without touching the
// campaign status.
func (s *Service) run(ctx context.Context, c *domain.Campaign, occurrence int) (*CampaignResult, error) {
	res := &CampaignResult{CampaignID: c.ID, Occurrence: occurrence, MessageIDs: []string{}}
	fail := func(err error) (*CampaignResult, error) {
		res.Error = err.Error()
		return res, err
	}

	tpl, err := s.Templates.Get(ctx, c.OwnerID, c.TemplateID)
	if err != nil {
		return fail(fmt.Errorf("load template: %w", err))
	}

	filter := contact.Filter{TagNames: c.TargetTags}
	if c.SegmentID != nil {
		filter.SegmentID = *c.SegmentID
	}
	contacts, err := s.Contacts.Resolve(ctx, c.OwnerID, filter)
	if err != nil {
		return fail(apperr.Internal(err))
	}
	contacts = sending.Dedupe(contacts)

	contacts, dropped, err := s.Suppressions.Filter(ctx, c.OwnerID, contacts)
	if err != nil {
		return fail(apperr.Internal(fmt.Errorf("filter suppressions: %w", err)))
	}
	res.Suppressed = len(dropped)
	res.Recipients = len(contacts)
	if len(contacts) == 0 {
		return fail(apperr.Validation(apperr.CodeNoRecipients, "campaign has no recipients"))
	}

	emails := make([]string, len(contacts))
	for i, ct := range contacts {
		emails[i] = ct.Email
	}
	claimed, err := s.Recipients.Claim(ctx, c.ID, occurrence, emails, s.ClaimTimeout)
	if err != nil {
		return fail(apperr.Internal(fmt.Errorf("claim recipients: %w", err)))
	}
	res.Skipped = len(contacts) - len(claimed)
	if len(claimed) == 0 {
		return res, nil
	}
	won := make(map[string]bool, len(claimed))
	for _, e := range claimed {
		won[e] = true
	}
	mine := contacts[:0]
	for _, ct := range contacts {
		if won[ct.Email] {
			mine = append(mine, ct)
		}
	}

	batches := sending.Build(mine, *tpl, c.Subject, s.Sender.MaxBatchSize())
	res.Batches = len(batches)
	for i := range batches {
		b := &batches[i]
		b.CampaignID = c.ID
		to := b.Recipients()
		details := map[string]any{
			"campaign_id": c.ID,
			"occurrence":  occurrence,
			"batch":       i + 1,
			"batches":     len(batches),
			"recipients":  len(to),
		}

		id, err := s.Sender.SendBatch(ctx, *b)
		if err != nil {
			details["error"] = err.Error()
			s.Log.Log(ctx, c.OwnerID, domain.ActionCampaignBatch, domain.LogError, details)
			s.Metrics.RecordDispatch(domain.ActionCampaignBatch, string(domain.LogError), len(to))

			var rest []string
			for _, later := range batches[i:] {
				rest = append(rest, later.Recipients()...)
			}
			s.mark(ctx, c.ID, occurrence, rest, domain.RecipientFailed, "")
			res.Failed += len(rest)
			return fail(apperr.Provider(fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)))
		}

		details["message_id"] = id
		s.Log.Log(ctx, c.OwnerID, domain.ActionCampaignBatch, domain.LogSuccess, details)
		s.Metrics.RecordDispatch(domain.ActionCampaignBatch, string(domain.LogSuccess), len(to))
		s.mark(ctx, c.ID, occurrence, to, domain.RecipientSent, id)
		res.Sent += len(to)
		res.MessageIDs = append(res.MessageIDs, id)
	}
	return res, nil
}

// mark records recipient outcomes. It runs even after ctx is cancelled so a
// stopped run leaves no sent address looking unsent. A failure here only
// loses bookkeeping, so it is logged rather than returned.
func (s *Service) mark(ctx context.Context, campaignID string, occurrence int, emails []string, status domain.RecipientStatus, messageID string) {
	if len(emails) == 0 {
		return
	}
	if err := s.Recipients.Mark(context.WithoutCancel(ctx), campaignID, occurrence, emails, status, messageID); err != nil {
		logger.Error("dispatch: mark recipients failed",
			"campaign_id", campaignID, "status", string(status), "count", len(emails), "error", err)
	}
}

// finish moves c from sending to final and records the run, regardless of
// ctx cancellation.
func (s *Service) finish(ctx context.Context, c *domain.Campaign, res *CampaignResult, final domain.CampaignStatus) {
	ctx = context.WithoutCancel(ctx)
	res.Status = final
	if _, err := s.Campaigns.Transition(ctx, c.OwnerID, c.ID, final); err != nil {
		logger.Error("dispatch: finish campaign failed", "campaign_id", c.ID, "status", string(final), "error", err)
	}
	s.record(ctx, c, res)
}

func (s *Service) record(ctx context.Context, c *domain.Campaign, res *CampaignResult) {
	ctx = context.WithoutCancel(ctx)
	if err := s.Campaigns.RecordRun(ctx, c.OwnerID, c.ID, campaign.RunResult{
		Sent: res.Sent, Failed: res.Failed, LastError: res.Error,
	}); err != nil {
		logger.Error("dispatch: record run failed", "campaign_id", c.ID, "error", err)
	}

	status := domain.LogSuccess
	if res.Error != "" {
		status = domain.LogError
	}
	s.Log.Log(ctx, c.OwnerID, domain.ActionSendCampaign, status, res)
}

// ScheduleInput describes when and how often a campaign runs.
type ScheduleInput struct {
	ScheduledAt    time.Time `json:"scheduled_at" validate:"required"`
	RepeatInterval string    `json:"repeat_interval" validate:"max=100"`
	RepeatCount    int       `json:"repeat_count" validate:"min=0,max=365"`
	SelectedTags   []string  `json:"selected_tags" validate:"omitempty,dive,max=64"`
}

// ScheduleCampaign stores the schedule of a draft campaign and queues its
// first occurrence.
func (s *Service) ScheduleCampaign(ctx context.Context, userID, campaignID string, in ScheduleInput) (*domain.CampaignJob, error) {
	details := map[string]any{"campaign_id": campaignID, "scheduled_at": in.ScheduledAt, "repeat_interval": in.RepeatInterval}
	fail := func(err error) (*domain.CampaignJob, error) {
		details["error"] = err.Error()
		s.Log.Log(ctx, userID, domain.ActionScheduleCampaign, domain.LogError, details)
		return nil, err
	}

	interval := strings.ToLower(strings.TrimSpace(in.RepeatInterval))
	runs := in.RepeatCount
	if interval == "" {
		runs = 1
	}
	if !in.ScheduledAt.After(s.now()) {
		return fail(apperr.Validation("", "scheduled_at must be in the future"))
	}
	if err := recurrence.Validate(interval, runs); err != nil {
		return fail(apperr.Validation("", "%v", err))
	}

	c, err := s.Campaigns.Get(ctx, userID, campaignID)
	if err != nil {
		return fail(err)
	}
	if c.Status != domain.CampaignDraft {
		return fail(fmt.Errorf("%w: %s campaigns cannot be scheduled", campaign.ErrInvalidTransition, c.Status))
	}

	occurrence, err := s.Jobs.NextOccurrence(ctx, campaignID)
	if err != nil {
		return fail(apperr.Internal(fmt.Errorf("next occurrence: %w", err)))
	}

	at := in.ScheduledAt.UTC()
	u := campaign.UpdateFields{ScheduledAt: &at, RepeatInterval: &interval, RepeatCount: &runs}
	if tags := cleanTags(in.SelectedTags); len(tags) > 0 {
		u.TargetTags = &tags
	}
	if err := s.Campaigns.SetSchedule(ctx, userID, campaignID, u); err != nil {
		return fail(err)
	}
	if _, err := s.Campaigns.Transition(ctx, userID, campaignID, domain.CampaignScheduled); err != nil {
		return fail(err)
	}

	job := &domain.CampaignJob{
		ID:             uuid.New().String(),
		CampaignID:     campaignID,
		OwnerID:        userID,
		RunAt:          at,
		ScheduledFor:   at,
		RepeatInterval: interval,
		RemainingRuns:  runs,
		Occurrence:     occurrence,
		Status:         domain.JobPending,
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		if _, rbErr := s.Campaigns.Transition(ctx, userID, campaignID, domain.CampaignDraft); rbErr != nil {
			logger.Error("dispatch: rollback schedule failed", "campaign_id", campaignID, "error", rbErr)
		}
		return fail(apperr.Internal(fmt.Errorf("create job: %w", err)))
	}

	details["job_id"] = job.ID
	details["runs"] = runs
	s.Log.Log(ctx, userID, domain.ActionScheduleCampaign, domain.LogSuccess, details)
	return job, nil
}

// Unschedule cancels the pending occurrences of a scheduled campaign and
// returns it to draft.
func (s *Service) Unschedule(ctx context.Context, userID, campaignID string) error {
	if _, err := s.Campaigns.Transition(ctx, userID, campaignID, domain.CampaignDraft); err != nil {
		return err
	}
	n, err := s.Jobs.CancelPending(ctx, userID, campaignID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("cancel jobs: %w", err))
	}
	s.Log.Log(ctx, userID, domain.ActionScheduleCampaign, domain.LogSuccess,
		map[string]any{"campaign_id": campaignID, "unscheduled": true, "cancelled_jobs": n})
	return nil
}

func cleanTags(tags []string) []string {
	return contact.NormalizeTags(tags)
}
