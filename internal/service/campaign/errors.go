package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingTemplate   = errors.New("campaign has no template")
	ErrNotEditable       = errors.New("only draft campaigns can be edited")
	ErrAlreadySending    = errors.New("campaign is currently sending")
)
