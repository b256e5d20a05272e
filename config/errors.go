// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName      = errors.New("invalid application name")
	ErrInvalidEnvironment  = errors.New("invalid environment")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidMaxDataSize  = errors.New("invalid max data size")
	ErrInvalidMaxUnitCount = errors.New("invalid max unit count")
	ErrInvalidMaxRetries   = errors.New("invalid max retries")
	ErrInvalidMailboxSize  = errors.New("invalid mailbox size")
	ErrInvalidTransport    = errors.New("invalid compute transport")
	ErrInvalidNATSURL      = errors.New("invalid nats url")
	ErrInvalidBackend      = errors.New("invalid storage backend")
	ErrInvalidS3Bucket     = errors.New("invalid s3 bucket")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound  = errors.New("configuration file not found")
	ErrConfigParseError    = errors.New("configuration parse error")
	ErrConfigValidateError = errors.New("configuration validation error")
	ErrConfigWatchError    = errors.New("configuration watch error")
)
