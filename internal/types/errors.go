package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout       = errors.New("timed out")
	ErrNotFound      = errors.New("element not found")
	ErrNoSnapshot    = errors.New("no snapshot stored")
	ErrSessionClosed = errors.New("browser session closed")
)

// Kind classifies a failure of one pipeline step.
type Kind int

const (
	KindUnknown Kind = iota
	KindLaunch
	KindAuthTimeout
	KindExtractionTimeout
	KindEgressLookup
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindLaunch:
		return "launch_failure"
	case KindAuthTimeout:
		return "auth_timeout"
	case KindExtractionTimeout:
		return "extraction_timeout"
	case KindEgressLookup:
		return "egress_lookup_failure"
	case KindStorage:
		return "storage_failure"
	default:
		return "unknown"
	}
}

// ScrapeError wraps a failure with the step that produced it.
type ScrapeError struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError builds a ScrapeError; a nil err yields nil.
func NewError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ScrapeError{Kind: kind, Op: op, Err: err}
}

func (e *ScrapeError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Op, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost ScrapeError in err's chain.
func KindOf(err error) Kind {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}
