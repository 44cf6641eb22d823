// Package v1 holds the wire shapes for the notification webhook.
package v1

import (
	"github.com/jdholdren/spectacle/api"
	"github.com/jdholdren/spectacle/internal/spectacle"
)

// Notification is the payload the timeline service POSTs when
// something changes.
type Notification struct {
	UserToken   string       `json:"userToken"`
	Collection  string       `json:"collection"`
	ItemID      string       `json:"itemId"`
	UserActions []UserAction `json:"userActions"`
}

type UserAction struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// Validate checks that the body (minus logic checks) is valid.
//
// Returns an api.Error if the request is invalid.
func (n Notification) Validate() error {
	errs := []api.ErrorDetail{}
	if n.UserToken == "" {
		errs = append(errs, api.ErrorDetail{
			Field: "userToken",
			Error: "userToken is required",
		})
	}
	if len(errs) > 0 {
		return api.Error{
			Reason:  "invalid_request",
			Message: "request was invalid",
			Details: errs,
		}
	}

	return nil
}

// Domain converts the wire payload into the parsed notification the
// dispatcher consumes, folding unrecognized strings onto the unknown
// arms.
func (n Notification) Domain() spectacle.Notification {
	actions := make([]spectacle.UserAction, 0, len(n.UserActions))
	for _, a := range n.UserActions {
		actions = append(actions, spectacle.UserAction{
			Type:    spectacle.ParseActionType(a.Type),
			Payload: a.Payload,
		})
	}

	return spectacle.Notification{
		UserToken:   n.UserToken,
		Collection:  spectacle.ParseCollection(n.Collection),
		ItemID:      n.ItemID,
		UserActions: actions,
	}
}
