package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrRepoNotFound       = errors.New("repository not found")
	ErrScanNotFound       = errors.New("scan not found")
	ErrScanInProgress     = errors.New("a scan is already processing for this repository")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
)
