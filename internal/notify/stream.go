package notify

import (
	"context"
	"log/slog"

	specerrs "github.com/jdholdren/spectacle/internal/errors"
	"github.com/jdholdren/spectacle/internal/spectacle"
)

// insertSocialStream republishes the latest social feed entries as
// individual timeline items. A failed feed fetch aborts before any
// insert; once composing starts, each message is inserted on its own.
func (d *Dispatcher) insertSocialStream(ctx context.Context, tl spectacle.Timeline) error {
	entries, err := d.content.SocialFeed(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error fetching social feed",
			"reason", string(specerrs.ReasonUpstreamFetch),
			"err", err,
		)
		return nil
	}

	msgs := composeSocialStream(entries)
	slog.InfoContext(ctx, "inserting social stream items", "count", len(msgs))

	for _, msg := range msgs {
		if err := d.writer.Write(ctx, tl, msg); err != nil {
			return err
		}
	}

	return nil
}
