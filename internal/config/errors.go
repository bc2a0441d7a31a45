package config

import "errors"

var (
	// ErrInvalidConfig indicates a malformed or out-of-range setting.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConfigNotFound indicates an explicitly requested config file is missing.
	ErrConfigNotFound = errors.New("config file not found")
)
