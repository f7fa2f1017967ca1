package model

import "errors"

// Sentinel errors for the domain model.
var (
	ErrInvalidMode      = errors.New("invalid mode")
	ErrInvalidAppConfig = errors.New("invalid app config")
)
