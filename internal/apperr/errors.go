package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrCellOccupied    = errors.New("cell occupied")
	ErrAssistantExists = errors.New("ai assistant already exists")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
