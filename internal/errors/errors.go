package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Reason is a machine-readable classification for an error crossing the
// webhook boundary.
type Reason string

const (
	ReasonUnauthorized          Reason = "unauthorized"
	ReasonMalformed             Reason = "malformed_notification"
	ReasonUpstreamFetch         Reason = "upstream_fetch_failed"
	ReasonAttachmentUnavailable Reason = "attachment_unavailable"
	ReasonInsertFailed          Reason = "insert_failed"
)

// Error represents a universal error type between the service's layers.
type Error struct {
	Status  int
	Reason  Reason
	Err     error // The error this wraps
	Details []Detail
}

type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d (%s): %s, details: %v", e.Status, e.Reason, e.Err, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type transport struct {
	Message string   `json:"message"`
	Reason  Reason   `json:"reason,omitempty"`
	Details []Detail `json:"details"`
	Status  int      `json:"status"`
}

func (s *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(transport{
		Message: s.Err.Error(),
		Reason:  s.Reason,
		Details: s.Details,
		Status:  s.Status,
	})
}

func (s *Error) UnmarshalJSON(byts []byte) error {
	t := transport{}
	if err := json.Unmarshal(byts, &t); err != nil {
		return err
	}

	s.Err = errors.New(t.Message)
	s.Reason = t.Reason
	s.Details = t.Details
	s.Status = t.Status
	return nil
}

func E(args ...any) *Error {
	ret := &Error{
		Status:  http.StatusInternalServerError,
		Err:     nil,
		Details: nil,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case int:
			ret.Status = arg
		case Reason:
			ret.Reason = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	return ret
}
