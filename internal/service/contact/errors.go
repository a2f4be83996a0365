package contact

import "errors"

// Sentinel errors for the contact service layer.
var (
	ErrNotFound       = errors.New("contact not found")
	ErrDuplicateEmail = errors.New("contact with this email already exists")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrEmptyFile      = errors.New("import file is empty")
	ErrNoEmailColumn  = errors.New("import file has no email column")
)
