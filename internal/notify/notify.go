// Package notify is the notification dispatch and composition engine.
// It classifies inbound webhook pings, decides which downstream calls
// to make, and assembles the derived timeline items that get written
// back into the user's timeline.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	specerrs "github.com/jdholdren/spectacle/internal/errors"
	"github.com/jdholdren/spectacle/internal/spectacle"
	"github.com/jdholdren/spectacle/logger"
)

// socialStreamPayload is the CUSTOM action payload that selects the
// social-stream feature.
const socialStreamPayload = "social-stream"

// Dispatcher routes one notification to at most one handler.
//
// Dispatch policy within the timeline collection: the first
// *recognized* action wins. Unrecognized actions are logged and
// skipped, and nothing after the first handled action runs, so a
// single notification produces at most one derived side effect.
type Dispatcher struct {
	creds   spectacle.CredentialResolver
	content spectacle.ContentSource
	writer  *Writer
}

func NewDispatcher(creds spectacle.CredentialResolver, content spectacle.ContentSource, writer *Writer) *Dispatcher {
	return &Dispatcher{
		creds:   creds,
		content: content,
		writer:  writer,
	}
}

// Dispatch handles a single parsed notification synchronously: the
// whole classify, fetch, compose, insert chain runs before it returns.
//
// Malformed or unrecognized notifications degrade to a logged no-op so
// the sender doesn't redeliver them. The two failures worth surfacing
// are missing credentials and a failed insert.
func (d *Dispatcher) Dispatch(ctx context.Context, n spectacle.Notification) error {
	ctx = logger.Ctx(ctx,
		slog.String("user_token", n.UserToken),
		slog.String("collection", n.Collection.String()),
	)

	tl, err := d.creds.Resolve(ctx, n.UserToken)
	if errors.Is(err, spectacle.ErrNoCredentials) {
		return specerrs.E(http.StatusUnauthorized, specerrs.ReasonUnauthorized, err)
	}
	if err != nil {
		return err
	}

	switch n.Collection {
	case spectacle.CollectionLocations:
		return d.handleLocations(ctx, tl, n)
	case spectacle.CollectionTimeline:
		return d.handleTimeline(ctx, tl, n)
	default:
		slog.InfoContext(ctx, "ignoring notification for unrecognized collection")
		return nil
	}
}

func (d *Dispatcher) handleTimeline(ctx context.Context, tl spectacle.Timeline, n spectacle.Notification) error {
	for _, action := range n.UserActions {
		switch {
		case action.Type == spectacle.ActionShare:
			return d.echoShare(ctx, tl, n.ItemID)
		case action.Type == spectacle.ActionCustom && action.Payload == socialStreamPayload:
			return d.insertSocialStream(ctx, tl)
		default:
			slog.InfoContext(ctx, "skipping unrecognized user action",
				"type", action.Type.String(),
				"payload", action.Payload,
			)
		}
	}

	slog.InfoContext(ctx, "no recognized user actions in notification")
	return nil
}
