package contact_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
)

// memRepo is an in-memory contact repository for unit testing.
type memRepo struct {
	mu       sync.Mutex
	contacts map[string]*domain.Contact // keyed by id
	order    []string
	failOn   string
}

func newMemRepo() *memRepo {
	return &memRepo{contacts: make(map[string]*domain.Contact)}
}

func (m *memRepo) byEmail(ownerID, email string) *domain.Contact {
	for _, c := range m.contacts {
		if c.OwnerID == ownerID && c.Email == email {
			return c
		}
	}
	return nil
}

func (m *memRepo) Get(_ context.Context, ownerID, id string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, contact.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, ownerID string, f contact.ListFilter) ([]domain.Contact, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, id := range m.order {
		c := m.contacts[id]
		if c == nil || c.OwnerID != ownerID {
			continue
		}
		if f.Search != "" && !strings.Contains(c.Email, f.Search) && !strings.Contains(c.DisplayName, f.Search) {
			continue
		}
		if f.Tag != "" && !c.HasAnyTag([]string{f.Tag}) {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byEmail(c.OwnerID, c.Email) != nil {
		return contact.ErrDuplicateEmail
	}
	cp := *c
	m.contacts[c.ID] = &cp
	m.order = append(m.order, c.ID)
	return nil
}

func (m *memRepo) Upsert(_ context.Context, c *domain.Contact) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Email == m.failOn {
		return false, errors.New("db down")
	}
	if existing := m.byEmail(c.OwnerID, c.Email); existing != nil {
		if c.DisplayName != "" {
			existing.DisplayName = c.DisplayName
		}
		existing.Tags = contact.NormalizeTags(append(existing.Tags, c.Tags...))
		return false, nil
	}
	cp := *c
	m.contacts[c.ID] = &cp
	m.order = append(m.order, c.ID)
	return true, nil
}

func (m *memRepo) Update(_ context.Context, ownerID, id string, u contact.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return contact.ErrNotFound
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.DisplayName != nil {
		c.DisplayName = *u.DisplayName
	}
	if u.Tags != nil {
		c.Tags = *u.Tags
	}
	if u.SegmentID != nil {
		c.SegmentID = u.SegmentID
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return contact.ErrNotFound
	}
	delete(m.contacts, id)
	return nil
}

func (m *memRepo) AddTags(_ context.Context, ownerID, id string, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return contact.ErrNotFound
	}
	c.Tags = contact.NormalizeTags(append(c.Tags, tags...))
	return nil
}

func (m *memRepo) RemoveTags(_ context.Context, ownerID, id string, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return contact.ErrNotFound
	}
	var kept []string
	for _, t := range c.Tags {
		drop := false
		for _, r := range tags {
			drop = drop || t == r
		}
		if !drop {
			kept = append(kept, t)
		}
	}
	c.Tags = kept
	return nil
}

func (m *memRepo) Resolve(_ context.Context, ownerID string, f contact.Filter) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, id := range m.order {
		c := m.contacts[id]
		if c == nil || c.OwnerID != ownerID {
			continue
		}
		switch {
		case len(f.TagNames) > 0:
			if !c.HasAnyTag(f.TagNames) {
				continue
			}
		case f.SegmentID != "":
			if c.SegmentID == nil || *c.SegmentID != f.SegmentID {
				continue
			}
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memRepo) Count(_ context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.contacts {
		if c.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

const testOwner = "user-1"

func seed(t *testing.T, svc *contact.Service, inputs ...contact.CreateInput) []*domain.Contact {
	t.Helper()
	var out []*domain.Contact
	for _, in := range inputs {
		c, err := svc.Create(context.Background(), testOwner, in)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func emails(cs []domain.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Email
	}
	sort.Strings(out)
	return out
}

func TestResolveByTag(t *testing.T) {
	svc := contact.NewService(newMemRepo())
	seg := "seg-a"
	seed(t, svc,
		contact.CreateInput{Email: "a@example.com", Tags: []string{"vip"}},
		contact.CreateInput{Email: "b@example.com", Tags: []string{"lead"}},
		contact.CreateInput{Email: "c@example.com", Tags: []string{"vip", "lead"}},
		contact.CreateInput{Email: "d@example.com", SegmentID: seg},
		contact.CreateInput{Email: "e@example.com"},
	)
	ctx := context.Background()

	got, err := svc.Resolve(ctx, testOwner, contact.Filter{TagNames: []string{"vip"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "c@example.com"}, emails(got))

	got, err = svc.Resolve(ctx, testOwner, contact.Filter{TagNames: []string{"vip", "lead"}})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = svc.Resolve(ctx, testOwner, contact.Filter{SegmentID: seg})
	require.NoError(t, err)
	assert.Equal(t, []string{"d@example.com"}, emails(got))

	got, err = svc.Resolve(ctx, testOwner, contact.Filter{TagNames: []string{" ", ""}})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = svc.Resolve(ctx, testOwner, contact.Filter{TagNames: []string{"nobody"}})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.Resolve(ctx, "someone-else", contact.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateNormalizesAndValidates(t *testing.T) {
	svc := contact.NewService(newMemRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, testOwner, contact.CreateInput{Email: " Ana@Example.COM ", DisplayName: " Ana ", Tags: []string{"vip", " vip", ""}})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", c.Email)
	assert.Equal(t, "Ana", c.DisplayName)
	assert.Equal(t, []string{"vip"}, c.Tags)

	_, err = svc.Create(ctx, testOwner, contact.CreateInput{Email: "ana@example.com"})
	assert.ErrorIs(t, err, contact.ErrDuplicateEmail)

	for _, bad := range []string{"", "nope", "Ana <ana@example.com>", "a@localhost"} {
		_, err = svc.Create(ctx, testOwner, contact.CreateInput{Email: bad})
		assert.ErrorIs(t, err, contact.ErrInvalidEmail, bad)
	}
}

func TestTagsAddRemove(t *testing.T) {
	svc := contact.NewService(newMemRepo())
	ctx := context.Background()
	c := seed(t, svc, contact.CreateInput{Email: "a@example.com", Tags: []string{"lead"}})[0]

	got, err := svc.AddTags(ctx, testOwner, c.ID, []string{"vip", "lead"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lead", "vip"}, got.Tags)

	got, err = svc.RemoveTags(ctx, testOwner, c.ID, []string{"lead"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, got.Tags)

	_, err = svc.AddTags(ctx, testOwner, c.ID, []string{" "})
	assert.Error(t, err)

	_, err = svc.AddTags(ctx, testOwner, "missing", []string{"x"})
	assert.ErrorIs(t, err, contact.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	svc := contact.NewService(newMemRepo())
	ctx := context.Background()
	c := seed(t, svc, contact.CreateInput{Email: "a@example.com"})[0]

	bad := "broken"
	_, err := svc.Update(ctx, testOwner, c.ID, contact.UpdateFields{Email: &bad})
	assert.ErrorIs(t, err, contact.ErrInvalidEmail)

	email, name := "B@Example.com", "Bruno"
	got, err := svc.Update(ctx, testOwner, c.ID, contact.UpdateFields{Email: &email, DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.Email)
	assert.Equal(t, "Bruno", got.DisplayName)
}

func TestImport(t *testing.T) {
	repo := newMemRepo()
	repo.failOn = "broken@example.com"
	svc := contact.NewService(repo)
	ctx := context.Background()
	seed(t, svc, contact.CreateInput{Email: "old@example.com", Tags: []string{"lead"}})

	csvData := "\ufeffEmail,Name,Tags\n" +
		"ana@example.com,Ana Silva,vip;lead\n" +
		"not-an-email,Nobody,\n" +
		"OLD@example.com,Old Friend,vip\n" +
		"broken@example.com,Broken,\n" +
		"bruno@example.com\n"

	res, err := svc.Import(ctx, testOwner, strings.NewReader(csvData), []string{"imported"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 3, res.Errors[0].Line)
	assert.Equal(t, 5, res.Errors[1].Line)

	list, _, err := svc.List(ctx, testOwner, contact.ListFilter{Tag: "imported"})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	old, _, _ := svc.List(ctx, testOwner, contact.ListFilter{Search: "old@"})
	require.Len(t, old, 1)
	assert.Equal(t, "Old Friend", old[0].DisplayName)
	assert.ElementsMatch(t, []string{"lead", "vip", "imported"}, old[0].Tags)
}

func TestImportRejectsBadFiles(t *testing.T) {
	svc := contact.NewService(newMemRepo())
	ctx := context.Background()

	_, err := svc.Import(ctx, testOwner, strings.NewReader(""), nil)
	assert.ErrorIs(t, err, contact.ErrEmptyFile)

	_, err = svc.Import(ctx, testOwner, strings.NewReader("name,tags\nAna,vip\n"), nil)
	assert.ErrorIs(t, err, contact.ErrNoEmailColumn)
}
