package config

import "errors"

// Errors returned by configuration operations.
var (
	// ErrSettingNotFound indicates the setting path does not exist.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrTypeMismatch indicates a value of the wrong type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidValue indicates a value outside its allowed range.
	ErrInvalidValue = errors.New("invalid value")
)
