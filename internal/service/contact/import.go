package contact

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
)

// MaxImportErrors caps how many row errors are reported back.
const MaxImportErrors = 100

// RowError describes one rejected import row. Line is 1-based and counts
// the header.
type RowError struct {
	Line   int    `json:"line"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors,omitempty"`
}

var headerAliases = map[string]string{
	"email":         "email",
	"e-mail":        "email",
	"email_address": "email",
	"name":          "name",
	"display_name":  "name",
	"full_name":     "name",
	"nome":          "name",
	"tags":          "tags",
	"segment":       "segment",
	"segment_id":    "segment",
}

// Import reads CSV with a header row naming at least an email column.
// Optional columns are name, tags (";"-separated) and segment. Rows are
// upserted by email, and bad rows are reported without stopping the import.
// extraTags are added to every imported contact.
func (s *Service) Import(ctx context.Context, ownerID string, r io.Reader, extraTags []string) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := headerAliases[key]; ok {
			if _, dup := cols[canon]; !dup {
				cols[canon] = i
			}
		}
	}
	emailCol, ok := cols["email"]
	if !ok {
		return nil, ErrNoEmailColumn
	}
	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	res := &ImportResult{}
	addErr := func(line int, email, reason string) {
		res.Skipped++
		if len(res.Errors) < MaxImportErrors {
			res.Errors = append(res.Errors, RowError{Line: line, Email: email, Reason: reason})
		}
	}
	extraTags = NormalizeTags(extraTags)

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			addErr(line, "", err.Error())
			continue
		}
		if emailCol >= len(row) {
			addErr(line, "", "missing email")
			continue
		}
		email := domain.NormalizeEmail(row[emailCol])
		if !domain.ValidEmail(email) {
			addErr(line, email, ErrInvalidEmail.Error())
			continue
		}

		tags := append(strings.Split(field(row, "tags"), ";"), extraTags...)
		c := &domain.Contact{
			ID:          uuid.New().String(),
			OwnerID:     ownerID,
			Email:       email,
			DisplayName: field(row, "name"),
			Tags:        NormalizeTags(tags),
		}
		if seg := field(row, "segment"); seg != "" {
			c.SegmentID = &seg
		}

		created, err := s.repo.Upsert(ctx, c)
		if err != nil {
			logger.Warn("contact import: upsert failed", "line", line, "email", email, "error", err)
			addErr(line, email, "could not be saved")
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res, nil
}
