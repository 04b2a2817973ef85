package storage

import (
	"errors"
	"fmt"
)

// ConfigurationError reports missing or malformed credentials. It is raised
// before any network call is attempted.
type ConfigurationError struct {
	Backend string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s backend not configured: %s", e.Backend, e.Reason)
}

// AuthenticationError reports rejected credentials (HTTP 401 or a Firebase
// auth failure).
type AuthenticationError struct {
	Backend string
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed: %s", e.Backend, e.Message)
}

// AuthorizationError reports valid credentials with insufficient scope
// (HTTP 403).
type AuthorizationError struct {
	Backend string
	Message string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s authorization failed: %s", e.Backend, e.Message)
}

// NotFoundError reports an absent resource. Adapters translate 404 on a
// collection file into an empty result instead of returning this; it
// surfaces only for resources whose absence is a real failure, such as the
// repository itself or an individual record.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ConflictError reports a write rejected because the revision token was
// missing or stale. It is surfaced to the caller, never resolved by a blind
// overwrite.
type ConflictError struct {
	Path    string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting write to %s: %s", e.Path, e.Message)
}

// TransientError wraps any other backend failure, carrying the backend's
// message verbatim prefixed with the status code where one exists.
type TransientError struct {
	Backend string
	Status  int
	Message string
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s backend error %d: %s", e.Backend, e.Status, e.Message)
	}
	return fmt.Sprintf("%s backend error: %s", e.Backend, e.Message)
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError anywhere in its chain.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsConfiguration reports whether err is a ConfigurationError anywhere in
// its chain.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}
