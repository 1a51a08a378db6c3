package project

import "errors"

var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrProjectAlreadyExists = errors.New("project already exists")
	ErrStoreUnavailable     = errors.New("project store unavailable")
)
