package api

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
	"github.com/ignite/campaign-dashboard/internal/service/delivery"
	"github.com/ignite/campaign-dashboard/internal/service/dispatch"
	"github.com/ignite/campaign-dashboard/internal/service/suppression"
	"github.com/ignite/campaign-dashboard/internal/service/tag"
	"github.com/ignite/campaign-dashboard/internal/service/template"
)

var errNotImplemented = errors.New("not implemented")

// fakeDispatch records what reached the dispatcher.
type fakeDispatch struct {
	mu        sync.Mutex
	sent      []dispatch.SendEmailInput
	campaigns []string
	scheduled []dispatch.ScheduleInput
	err       error
}

func (f *fakeDispatch) SendEmail(_ context.Context, _ string, in dispatch.SendEmailInput) (*domain.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, in)
	return &domain.SendResult{Success: true, MessageID: "msg-" + uuid.NewString()[:8], Timestamp: time.Now().UTC()}, nil
}

func (f *fakeDispatch) SendCampaign(_ context.Context, _ string, id string, opts dispatch.SendOptions) (*dispatch.CampaignResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.campaigns = append(f.campaigns, id)
	return &dispatch.CampaignResult{CampaignID: id, Status: domain.CampaignSent, Recipients: 2, Sent: 2, Batches: 1}, nil
}

func (f *fakeDispatch) ScheduleCampaign(_ context.Context, user, id string, in dispatch.ScheduleInput) (*domain.CampaignJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.scheduled = append(f.scheduled, in)
	return &domain.CampaignJob{ID: "job-1", CampaignID: id, OwnerID: user, RunAt: in.ScheduledAt, Occurrence: 1, RemainingRuns: 1, Status: domain.JobPending}, nil
}

func (f *fakeDispatch) Unschedule(context.Context, string, string) error {
	return f.err
}

func (f *fakeDispatch) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeDelivery struct {
	quotaErr error
	entries  []domain.DeliveryLogEntry
	logged   []domain.DeliveryLogEntry
}

func (f *fakeDelivery) Log(_ context.Context, userID, action string, status domain.LogStatus, _ any) {
	f.logged = append(f.logged, domain.DeliveryLogEntry{UserID: userID, Action: action, Status: status})
}

func (f *fakeDelivery) List(_ context.Context, _ string, fl delivery.ListFilter) ([]domain.DeliveryLogEntry, int, error) {
	var out []domain.DeliveryLogEntry
	for _, e := range f.entries {
		if fl.Action != "" && e.Action != fl.Action {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (f *fakeDelivery) CheckQuota(context.Context, string, time.Time) (int, error) {
	if f.quotaErr != nil {
		return 0, f.quotaErr
	}
	return 100, nil
}

func (f *fakeDelivery) Stats(context.Context, string, time.Time) (*domain.DeliveryStats, error) {
	return &domain.DeliveryStats{TotalSuccess: len(f.entries), ByAction: map[string]int{}, DailyQuota: 100, DailyQuotaRemaining: 100}, nil
}

// memContacts is a small in-memory contact book keyed by id.
type memContacts struct {
	mu       sync.Mutex
	contacts map[string]*domain.Contact
	imported []string
}

func newMemContacts() *memContacts {
	return &memContacts{contacts: map[string]*domain.Contact{}}
}

func (m *memContacts) add(owner, email string, tags ...string) *domain.Contact {
	c := &domain.Contact{ID: uuid.NewString(), OwnerID: owner, Email: email, Tags: tags, CreatedAt: time.Now()}
	m.mu.Lock()
	m.contacts[c.ID] = c
	m.mu.Unlock()
	return c
}

func (m *memContacts) Get(_ context.Context, owner, id string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok || c.OwnerID != owner {
		return nil, contact.ErrNotFound
	}
	return c, nil
}

func (m *memContacts) List(_ context.Context, owner string, f contact.ListFilter) ([]domain.Contact, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, c := range m.contacts {
		if c.OwnerID == owner && (f.Tag == "" || c.HasAnyTag([]string{f.Tag})) {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (m *memContacts) Create(_ context.Context, owner string, in contact.CreateInput) (*domain.Contact, error) {
	m.mu.Lock()
	for _, c := range m.contacts {
		if c.OwnerID == owner && c.Email == domain.NormalizeEmail(in.Email) {
			m.mu.Unlock()
			return nil, contact.ErrDuplicateEmail
		}
	}
	m.mu.Unlock()
	return m.add(owner, domain.NormalizeEmail(in.Email), in.Tags...), nil
}

func (m *memContacts) Update(context.Context, string, string, contact.UpdateFields) (*domain.Contact, error) {
	return nil, errNotImplemented
}

func (m *memContacts) Delete(_ context.Context, owner, id string) error {
	if _, err := m.Get(context.Background(), owner, id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.contacts, id)
	m.mu.Unlock()
	return nil
}

func (m *memContacts) AddTags(ctx context.Context, owner, id string, tags []string) (*domain.Contact, error) {
	c, err := m.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	c.Tags = contact.NormalizeTags(append(c.Tags, tags...))
	m.mu.Unlock()
	return c, nil
}

func (m *memContacts) RemoveTags(context.Context, string, string, []string) (*domain.Contact, error) {
	return nil, errNotImplemented
}

func (m *memContacts) Resolve(_ context.Context, owner string, f contact.Filter) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, c := range m.contacts {
		if c.OwnerID != owner {
			continue
		}
		if len(f.TagNames) > 0 && !c.HasAnyTag(f.TagNames) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memContacts) Import(_ context.Context, owner string, r io.Reader, extraTags []string) (*contact.ImportResult, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, contact.ErrEmptyFile
	}
	res := &contact.ImportResult{}
	for _, row := range rows[1:] {
		m.add(owner, row[0], extraTags...)
		m.imported = append(m.imported, row[0])
		res.Created++
	}
	return res, nil
}

type stubCampaigns struct {
	campaigns map[string]*domain.Campaign
}

func (s *stubCampaigns) Get(_ context.Context, owner, id string) (*domain.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok || c.OwnerID != owner {
		return nil, campaign.ErrNotFound
	}
	return c, nil
}

func (s *stubCampaigns) List(_ context.Context, owner string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	var out []domain.Campaign
	for _, c := range s.campaigns {
		if c.OwnerID == owner && (f.Status == "" || string(c.Status) == f.Status) {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (s *stubCampaigns) Create(_ context.Context, owner string, in campaign.CreateInput) (*domain.Campaign, error) {
	c := &domain.Campaign{ID: uuid.NewString(), OwnerID: owner, Name: in.Name, TemplateID: in.TemplateID, Status: domain.CampaignDraft}
	s.campaigns[c.ID] = c
	return c, nil
}

func (s *stubCampaigns) Update(_ context.Context, owner, id string, _ campaign.UpdateFields) (*domain.Campaign, error) {
	c, err := s.Get(context.Background(), owner, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft {
		return nil, campaign.ErrNotEditable
	}
	return c, nil
}

func (s *stubCampaigns) Delete(context.Context, string, string) error { return errNotImplemented }

type stubJobs struct{}

func (stubJobs) ListByCampaign(_ context.Context, owner, id string) ([]domain.CampaignJob, error) {
	return nil, nil
}

type stubSuppressions struct {
	entries map[string]domain.SuppressionReason
}

func (s *stubSuppressions) Suppress(_ context.Context, owner, email string, reason domain.SuppressionReason) (*domain.Suppression, error) {
	if !reason.Valid() {
		return nil, suppression.ErrInvalidReason
	}
	s.entries[email] = reason
	return &domain.Suppression{OwnerID: owner, Email: email, Reason: reason}, nil
}

func (s *stubSuppressions) Remove(_ context.Context, _ string, email string) error {
	if _, ok := s.entries[email]; !ok {
		return suppression.ErrNotFound
	}
	delete(s.entries, email)
	return nil
}

func (s *stubSuppressions) List(context.Context, string, suppression.ListFilter) ([]domain.Suppression, int, error) {
	return nil, 0, nil
}

func (s *stubSuppressions) GetStats(context.Context, string) (*suppression.Stats, error) {
	return &suppression.Stats{Total: len(s.entries), ByReason: map[string]int{}}, nil
}

type stubTemplates struct{}

func (stubTemplates) Get(context.Context, string, string) (*domain.Template, error) {
	return nil, template.ErrNotFound
}

func (stubTemplates) List(context.Context, string, template.ListFilter) ([]domain.Template, int, error) {
	return nil, 0, nil
}

func (stubTemplates) Create(context.Context, string, template.CreateInput) (*domain.Template, error) {
	return nil, template.ErrInvalidSyntax
}

func (stubTemplates) Update(context.Context, string, string, template.UpdateFields) (*domain.Template, error) {
	return nil, template.ErrNotFound
}

func (stubTemplates) Delete(context.Context, string, string) error { return template.ErrNotFound }

func (stubTemplates) Preview(_ context.Context, _ string, _ string, in template.PreviewInput) (*template.Preview, error) {
	return &template.Preview{Subject: "Hi", HTML: "<p>Hi " + in.Variables["nome"] + "</p>", Missing: []string{}}, nil
}

type stubTags struct{}

func (stubTags) List(context.Context, string) ([]domain.Tag, error) { return nil, nil }

func (stubTags) Create(context.Context, string, tag.CreateInput) (*domain.Tag, error) {
	return nil, tag.ErrDuplicateName
}

func (stubTags) Update(context.Context, string, string, tag.UpdateFields) (*domain.Tag, error) {
	return nil, tag.ErrNotFound
}

func (stubTags) Delete(context.Context, string, string) error { return tag.ErrNotFound }
