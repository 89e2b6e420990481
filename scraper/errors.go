package scraper

import (
	"errors"
	"fmt"
)

// ErrInvalidSeed indicates the seed URL failed normalization. The crawl
// never starts; this is the only error Run surfaces to the caller.
type ErrInvalidSeed struct {
	URL string
	Err error
}

func (e ErrInvalidSeed) Error() string {
	return fmt.Sprintf("invalid URL %q: %v", e.URL, e.Err)
}

func (e ErrInvalidSeed) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("timeout: %v", e.Err)
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Sprintf("connection: %v", e.Err)
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrBadStatus indicates a non-success HTTP response.
type ErrBadStatus struct {
	Status int
	Err    error
}

func (e ErrBadStatus) Error() string {
	return fmt.Sprintf("http status %d", e.Status)
}

func (e ErrBadStatus) Unwrap() error {
	return e.Err
}

// ErrUnparsable indicates the response body produced no extractable
// page, typically a non-HTML payload.
type ErrUnparsable struct {
	URL string
}

func (e ErrUnparsable) Error() string {
	return fmt.Sprintf("no parseable html at %s", e.URL)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var status ErrBadStatus
	if errors.As(err, &status) {
		switch status.Status {
		case 403:
			return "forbidden"
		case 404:
			return "not_found"
		case 429:
			return "rate_limited"
		}
		return "bad_status"
	}
	var unparsable ErrUnparsable
	if errors.As(err, &unparsable) {
		return "unparsable"
	}
	return "other"
}
