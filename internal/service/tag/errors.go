package tag

import "errors"

// Sentinel errors for the tag service layer.
var (
	ErrNotFound      = errors.New("tag not found")
	ErrDuplicateName = errors.New("tag with this name already exists")
	ErrInvalidName   = errors.New("tag name is required")
)
