package tracker

import "errors"

// Sentinel errors for validation failures. They surface to the command layer
// as-is and are never retried.
var (
	ErrApplicationNotFound  = errors.New("no application found")
	ErrDuplicateApplication = errors.New("application already exists")
	ErrInvalidStage         = errors.New("invalid stage")
	ErrInvalidSeason        = errors.New("invalid season")
	ErrReminderNotFound     = errors.New("no reminder found")
)
