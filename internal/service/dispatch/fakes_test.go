package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
)

type fakeSender struct {
	mu       sync.Mutex
	maxBatch int
	failOn   int // 1-based batch number that fails, 0 = never
	singles  []domain.Message
	batches  []domain.Batch
	err      error

	// afterBatch runs after each accepted batch, outside the lock.
	afterBatch func(n int)
}

func (f *fakeSender) Send(_ context.Context, m domain.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.singles = append(f.singles, m)
	return "msg-single", nil
}

func (f *fakeSender) SendBatch(ctx context.Context, b domain.Batch) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	if f.failOn > 0 && len(f.batches)+1 == f.failOn {
		f.failOn = 0
		f.mu.Unlock()
		return "", errors.New("sendgrid: status 503: unavailable")
	}
	f.batches = append(f.batches, b)
	n := len(f.batches)
	hook := f.afterBatch
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return "msg-batch", nil
}

func (f *fakeSender) MaxBatchSize() int {
	if f.maxBatch > 0 {
		return f.maxBatch
	}
	return domain.MaxBatchSize
}

func (f *fakeSender) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.batches {
		out = append(out, b.Recipients()...)
	}
	return out
}

type fakeCampaigns struct {
	mu   sync.Mutex
	byID map[string]*domain.Campaign
	runs []campaign.RunResult
}

func (f *fakeCampaigns) Get(_ context.Context, ownerID, id string) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.OwnerID != ownerID {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) Transition(ctx context.Context, ownerID, id string, next domain.CampaignStatus) (*domain.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.OwnerID != ownerID {
		return nil, campaign.ErrNotFound
	}
	if !c.Status.CanTransition(next) {
		return nil, campaign.ErrInvalidTransition
	}
	prev := *c
	c.Status = next
	return &prev, nil
}

func (f *fakeCampaigns) BeginRun(ctx context.Context, ownerID, id string, occurrence int) (*domain.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.OwnerID != ownerID {
		return nil, campaign.ErrNotFound
	}
	prev := *c
	switch {
	case c.Status == domain.CampaignSending && occurrence > 0 && c.ActiveOccurrence == occurrence:
		return &prev, nil
	case c.Status == domain.CampaignScheduled, c.Status == domain.CampaignDraft && occurrence == 0:
		c.Status = domain.CampaignSending
		c.ActiveOccurrence = occurrence
		return &prev, nil
	}
	return nil, campaign.ErrInvalidTransition
}

func (f *fakeCampaigns) SetSchedule(_ context.Context, _, id string, u campaign.UpdateFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID[id]
	if u.ScheduledAt != nil {
		c.ScheduledAt = u.ScheduledAt
	}
	if u.RepeatInterval != nil {
		c.RepeatInterval = *u.RepeatInterval
	}
	if u.RepeatCount != nil {
		c.RepeatCount = *u.RepeatCount
	}
	if u.TargetTags != nil {
		c.TargetTags = *u.TargetTags
	}
	return nil
}

func (f *fakeCampaigns) RecordRun(ctx context.Context, _, id string, r campaign.RunResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID[id]
	c.SentCount += r.Sent
	c.FailedCount += r.Failed
	c.LastError = r.LastError
	f.runs = append(f.runs, r)
	return nil
}

func (f *fakeCampaigns) status(id string) domain.CampaignStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

type fakeTemplates map[string]domain.Template

func (f fakeTemplates) Get(_ context.Context, _, id string) (*domain.Template, error) {
	t, ok := f[id]
	if !ok {
		return nil, errors.New("template not found")
	}
	return &t, nil
}

type fakeContacts []domain.Contact

func (f fakeContacts) Resolve(_ context.Context, _ string, filter contact.Filter) ([]domain.Contact, error) {
	var out []domain.Contact
	for _, c := range f {
		if len(filter.TagNames) > 0 && !c.HasAnyTag(filter.TagNames) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type fakeSuppressions map[string]bool

func (f fakeSuppressions) IsSuppressed(_ context.Context, _, email string) (bool, error) {
	return f[email], nil
}

func (f fakeSuppressions) Filter(_ context.Context, _ string, contacts []domain.Contact) ([]domain.Contact, []string, error) {
	var kept []domain.Contact
	var dropped []string
	for _, c := range contacts {
		if f[c.Email] {
			dropped = append(dropped, c.Email)
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped, nil
}

type logEntry struct {
	action string
	status domain.LogStatus
	detail any
}

type fakeLog struct {
	mu      sync.Mutex
	entries []logEntry
}

func (f *fakeLog) Log(_ context.Context, _ string, action string, status domain.LogStatus, details any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, logEntry{action, status, details})
}

func (f *fakeLog) count(action string, status domain.LogStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.action == action && e.status == status {
			n++
		}
	}
	return n
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []*domain.CampaignJob
	err  error
}

func (f *fakeJobs) Create(_ context.Context, j *domain.CampaignJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, j)
	return nil
}

func (f *fakeJobs) CancelPending(_ context.Context, _, campaignID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, j := range f.jobs {
		if j.CampaignID == campaignID && j.Status == domain.JobPending {
			j.Status = domain.JobCancelled
			n++
		}
	}
	return n, nil
}

func (f *fakeJobs) NextOccurrence(_ context.Context, campaignID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	last := 0
	for _, j := range f.jobs {
		if j.CampaignID == campaignID && j.Occurrence > last {
			last = j.Occurrence
		}
	}
	return last + 1, nil
}

type recipientKey struct {
	campaignID string
	occurrence int
	email      string
}

type fakeRecipients struct {
	mu        sync.Mutex
	status    map[recipientKey]domain.RecipientStatus
	updatedAt map[recipientKey]time.Time
	stale     []time.Duration
}

func newFakeRecipients() *fakeRecipients {
	return &fakeRecipients{
		status:    map[recipientKey]domain.RecipientStatus{},
		updatedAt: map[recipientKey]time.Time{},
	}
}

func (f *fakeRecipients) Claim(_ context.Context, campaignID string, occurrence int, emails []string, staleAfter time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stale = append(f.stale, staleAfter)
	now := time.Now()
	var won []string
	for _, e := range emails {
		k := recipientKey{campaignID, occurrence, e}
		if st, ok := f.status[k]; ok {
			expired := st == domain.RecipientClaimed && now.Sub(f.updatedAt[k]) > staleAfter
			if st != domain.RecipientFailed && !expired {
				continue
			}
		}
		f.status[k] = domain.RecipientClaimed
		f.updatedAt[k] = now
		won = append(won, e)
	}
	return won, nil
}

func (f *fakeRecipients) Mark(ctx context.Context, campaignID string, occurrence int, emails []string, st domain.RecipientStatus, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range emails {
		k := recipientKey{campaignID, occurrence, e}
		f.status[k] = st
		f.updatedAt[k] = time.Now()
	}
	return nil
}

// claimAt seeds a claim left behind by a run that never marked it.
func (f *fakeRecipients) claimAt(campaignID string, occurrence int, at time.Time, emails ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range emails {
		k := recipientKey{campaignID, occurrence, e}
		f.status[k] = domain.RecipientClaimed
		f.updatedAt[k] = at
	}
}

func (f *fakeRecipients) withStatus(st domain.RecipientStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.status {
		if s == st {
			n++
		}
	}
	return n
}
