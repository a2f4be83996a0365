package template

import "errors"

// Sentinel errors for the template service layer.
var (
	ErrNotFound       = errors.New("template not found")
	ErrInvalidSyntax  = errors.New("template has invalid syntax")
	ErrMissingContent = errors.New("template name, subject and body are required")
)
