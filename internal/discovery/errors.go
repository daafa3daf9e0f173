package discovery

import (
	"errors"
	"fmt"
)

// ErrBudgetExhausted is returned when a search call is skipped because the run's quota is spent
var ErrBudgetExhausted = errors.New("search call budget exhausted")

// ErrorKind classifies a source failure
type ErrorKind string

const (
	KindTransient  ErrorKind = "transient"   // timeout, rate limit, 5xx, breaker open
	KindParseDrift ErrorKind = "parse_drift" // unexpected document shape
)

// SourceError is a failure of one network call or extraction inside an adapter.
// It is recorded in the SourceRunResult and never returned from a run.
type SourceError struct {
	Kind       ErrorKind
	Source     SourceTag
	URL        string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Source, e.Kind)
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewTransientError wraps a network failure of source
func NewTransientError(source SourceTag, url string, statusCode int, err error) *SourceError {
	return &SourceError{Kind: KindTransient, Source: source, URL: url, StatusCode: statusCode, Err: err}
}

// NewParseDriftError records that a document did not have the expected shape
func NewParseDriftError(source SourceTag, url string, err error) *SourceError {
	return &SourceError{Kind: KindParseDrift, Source: source, URL: url, Err: err}
}

// IsParseDrift reports whether err is a parse drift failure
func IsParseDrift(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Kind == KindParseDrift
}

// IsTransient reports whether err is a transient source failure
func IsTransient(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Kind == KindTransient
}
