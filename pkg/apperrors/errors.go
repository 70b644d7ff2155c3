package apperrors

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidInput            = errors.New("invalid input")
	ErrConflict                = errors.New("version conflict")
	ErrMatcherContract         = errors.New("semantic matcher contract violation")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrSetupIncomplete         = errors.New("required schema or infrastructure is absent")
)
