package tenant

import "errors"

var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantAlreadyExists = errors.New("tenant already exists")
	ErrStoreUnavailable    = errors.New("tenant store unavailable")
)
