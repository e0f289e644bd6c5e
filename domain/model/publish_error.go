package model

import (
	"errors"
	"fmt"
)

// ErrorClass is the common retry/failure taxonomy every adapter maps remote
// responses onto. The dispatcher decides retry vs terminal-fail on the class,
// never on message text.
type ErrorClass string

const (
	ErrClassTransientNetwork  ErrorClass = "transient_network"
	ErrClassRateLimited       ErrorClass = "rate_limited"
	ErrClassAuthExpired       ErrorClass = "auth_expired"
	ErrClassPermissionDenied  ErrorClass = "permission_denied"
	ErrClassRemoteNotFound    ErrorClass = "remote_not_found"
	ErrClassProtocolTimeout   ErrorClass = "protocol_timeout"
	ErrClassMalformedResponse ErrorClass = "malformed_response"
)

// PublishError is the typed error adapters raise. RemoteID carries a partial
// remote artifact (e.g. an uploaded media id whose publish call then failed)
// so failure messages preserve it for manual reconciliation.
type PublishError struct {
	Class    ErrorClass
	Message  string
	RemoteID string
}

func (e *PublishError) Error() string {
	if e.RemoteID != "" {
		return fmt.Sprintf("%s: %s (remote id %s)", e.Class, e.Message, e.RemoteID)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Retryable reports whether the dispatcher may attempt the job again within
// its retry budget.
func (e *PublishError) Retryable() bool {
	return e.Class == ErrClassTransientNetwork || e.Class == ErrClassRateLimited
}

// UserMessage renders the actionable, dashboard-facing failure text.
func (e *PublishError) UserMessage() string {
	switch e.Class {
	case ErrClassAuthExpired:
		return "Account connection expired - reconnect your account and try again"
	case ErrClassPermissionDenied:
		return "The connected account is not allowed to perform this action"
	case ErrClassRateLimited:
		return "The platform is rate limiting requests - try again later"
	case ErrClassProtocolTimeout:
		return "The platform did not finish processing the video in time"
	default:
		return e.Message
	}
}

func NewPublishError(class ErrorClass, format string, args ...interface{}) *PublishError {
	return &PublishError{Class: class, Message: fmt.Sprintf(format, args...)}
}

// AsPublishError unwraps err into a *PublishError when one is in the chain.
func AsPublishError(err error) (*PublishError, bool) {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// RemotePost is the successful result of a platform publish.
type RemotePost struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
