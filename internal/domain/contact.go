package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Contact is a single email recipient owned by a user.
type Contact struct {
	ID          string    `json:"id" db:"id"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Tags        []string  `json:"tags" db:"tags"`
	SegmentID   *string   `json:"segment_id,omitempty" db:"segment_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// HasAnyTag reports whether the contact carries at least one of names.
func (c *Contact) HasAnyTag(names []string) bool {
	for _, t := range c.Tags {
		for _, n := range names {
			if t == n {
				return true
			}
		}
	}
	return false
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email is a bare addr-spec ("a@b.com", not
// "Name <a@b.com>") with a dotted domain.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// Tag is a user-defined label. Contacts reference tags by name.
type Tag struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	Icon      string    `json:"icon" db:"icon"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
