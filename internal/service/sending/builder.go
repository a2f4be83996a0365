package sending

import (
	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/render"
)

// Build renders tpl for every contact and splits the result into batches of
// at most chunkSize personalizations. chunkSize <= 0 selects the provider
// maximum, and larger values are clamped to it.
//
// Contacts are de-duplicated by normalized address before chunking, so the
// output holds ceil(n/chunkSize) batches over the n distinct addresses, in
// input order.
func Build(contacts []domain.Contact, tpl domain.Template, subject string, chunkSize int) []domain.Batch {
	if chunkSize <= 0 || chunkSize > domain.MaxBatchSize {
		chunkSize = domain.MaxBatchSize
	}
	if subject == "" {
		subject = tpl.Subject
	}

	unique := Dedupe(contacts)
	if len(unique) == 0 {
		return nil
	}

	batches := make([]domain.Batch, 0, (len(unique)+chunkSize-1)/chunkSize)
	for start := 0; start < len(unique); start += chunkSize {
		end := start + chunkSize
		if end > len(unique) {
			end = len(unique)
		}
		b := domain.Batch{
			SubjectTemplate:  subject,
			HTMLTemplate:     tpl.HTMLBody,
			Personalizations: make([]domain.PersonalizedMessage, 0, end-start),
		}
		for _, c := range unique[start:end] {
			vars := render.ContactVariables(c, nil)
			b.Personalizations = append(b.Personalizations, domain.PersonalizedMessage{
				To:        c.Email,
				ToName:    c.DisplayName,
				Subject:   render.Render(subject, vars),
				HTML:      render.Render(tpl.HTMLBody, vars),
				Variables: vars,
			})
		}
		batches = append(batches, b)
	}
	return batches
}

// Dedupe drops contacts whose normalized address was already seen and
// returns the rest with normalized addresses, in input order.
func Dedupe(contacts []domain.Contact) []domain.Contact {
	seen := make(map[string]bool, len(contacts))
	out := make([]domain.Contact, 0, len(contacts))
	for _, c := range contacts {
		email := domain.NormalizeEmail(c.Email)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		c.Email = email
		out = append(out, c)
	}
	return out
}
