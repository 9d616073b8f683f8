package domain

import "errors"

var (
	ErrNotFound = errors.New("notification.errors.notFound")
)
