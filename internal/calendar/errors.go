package calendar

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a CalendarError
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuthorizationDenied
	KindAuthorizationTimeout
	KindNoSuchCalendar
	KindNoSuchEvent
	KindSaveFailed
	KindDeleteFailed
	KindInvalidRequest
	KindStoreFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorizationDenied:
		return "authorization_denied"
	case KindAuthorizationTimeout:
		return "authorization_timeout"
	case KindNoSuchCalendar:
		return "no_such_calendar"
	case KindNoSuchEvent:
		return "no_such_event"
	case KindSaveFailed:
		return "save_failed"
	case KindDeleteFailed:
		return "delete_failed"
	case KindInvalidRequest:
		return "invalid_request"
	case KindStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

// CalendarError is the single error type returned by Client. Name is set for
// calendar lookups, ID for event lookups, Guidance for authorization failures.
// Err carries the host's diagnostic when there is one.
type CalendarError struct {
	Kind     ErrorKind
	Name     string
	ID       string
	Guidance string
	Message  string
	Err      error
}

func (e *CalendarError) Error() string {
	var msg string
	switch e.Kind {
	case KindAuthorizationDenied:
		msg = "calendar access denied"
		if e.Guidance != "" {
			msg += ". " + e.Guidance
		}
	case KindAuthorizationTimeout:
		msg = "timed out waiting for calendar access to be granted"
		if e.Guidance != "" {
			msg += ". " + e.Guidance
		}
	case KindNoSuchCalendar:
		if e.Name == "" {
			msg = "default calendar not found"
		} else {
			msg = fmt.Sprintf("calendar not found: %s", e.Name)
		}
	case KindNoSuchEvent:
		msg = fmt.Sprintf("event not found: %s", e.ID)
	case KindSaveFailed:
		msg = "failed to save event"
	case KindDeleteFailed:
		msg = "failed to delete event"
	case KindInvalidRequest:
		msg = "invalid request"
	case KindStoreFailure:
		msg = "calendar store failure"
	default:
		msg = "calendar error"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CalendarError) Unwrap() error {
	return e.Err
}

// Is matches any CalendarError of the same kind, so the Err* sentinels work
// with errors.Is.
func (e *CalendarError) Is(target error) bool {
	t, ok := target.(*CalendarError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrAuthorizationDenied  = &CalendarError{Kind: KindAuthorizationDenied}
	ErrAuthorizationTimeout = &CalendarError{Kind: KindAuthorizationTimeout}
	ErrNoSuchCalendar       = &CalendarError{Kind: KindNoSuchCalendar}
	ErrNoSuchEvent          = &CalendarError{Kind: KindNoSuchEvent}
	ErrSaveFailed           = &CalendarError{Kind: KindSaveFailed}
	ErrDeleteFailed         = &CalendarError{Kind: KindDeleteFailed}
	ErrInvalidRequest       = &CalendarError{Kind: KindInvalidRequest}
	ErrStoreFailure         = &CalendarError{Kind: KindStoreFailure}
)

func NewAuthorizationDeniedError(guidance string, err error) *CalendarError {
	return &CalendarError{Kind: KindAuthorizationDenied, Guidance: guidance, Err: err}
}

func NewAuthorizationTimeoutError(guidance string) *CalendarError {
	return &CalendarError{Kind: KindAuthorizationTimeout, Guidance: guidance}
}

// NewNoSuchCalendarError is returned for an unknown name; an empty name means
// the host has no default calendar.
func NewNoSuchCalendarError(name string) *CalendarError {
	return &CalendarError{Kind: KindNoSuchCalendar, Name: name}
}

func NewNoSuchEventError(id string) *CalendarError {
	return &CalendarError{Kind: KindNoSuchEvent, ID: id}
}

func NewSaveFailedError(id string, err error) *CalendarError {
	return &CalendarError{Kind: KindSaveFailed, ID: id, Err: err}
}

func NewDeleteFailedError(id string, err error) *CalendarError {
	return &CalendarError{Kind: KindDeleteFailed, ID: id, Err: err}
}

func NewInvalidRequestError(message string) *CalendarError {
	return &CalendarError{Kind: KindInvalidRequest, Message: message}
}

func NewStoreFailureError(message string, err error) *CalendarError {
	return &CalendarError{Kind: KindStoreFailure, Message: message, Err: err}
}

// KindOf returns the kind of the first CalendarError in err's chain
func KindOf(err error) ErrorKind {
	var calErr *CalendarError
	if errors.As(err, &calErr) {
		return calErr.Kind
	}
	return KindUnknown
}
