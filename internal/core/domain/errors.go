package domain

import "errors"

var (
	ErrSessionAlreadyActive  = errors.New("a poll creation session is already active")
	ErrNoActiveSession       = errors.New("no active poll creation session")
	ErrMissingCode           = errors.New("poll code is required")
	ErrCodeInUse             = errors.New("poll code is already in use")
	ErrPollNotFound          = errors.New("poll not found")
	ErrCannotEditClosed      = errors.New("closed polls cannot be edited")
	ErrInsufficientOptions   = errors.New("at least two options are required")
	ErrPollClosed            = errors.New("poll is closed")
	ErrAlreadyVoted          = errors.New("user has already voted")
	ErrInvalidOption         = errors.New("invalid option for this poll")
	ErrInvalidDurationFormat = errors.New("invalid duration format")
	ErrInvalidField          = errors.New("invalid session field")
	ErrDraftNotFound         = errors.New("draft not found")
	ErrStorageUnavailable    = errors.New("storage unavailable")
)
