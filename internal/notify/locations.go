package notify

import (
	"context"
	"log/slog"

	specerrs "github.com/jdholdren/spectacle/internal/errors"
	"github.com/jdholdren/spectacle/internal/spectacle"
)

const socialStreamIconURL = "https://storage.googleapis.com/spectacle-assets/social-stream.jpg"

// handleLocations reacts to a location update: it looks up the new
// position, queries the nearby-events directory, and publishes a card
// listing what's close by. Anything missing or failing upstream is a
// logged no-op so the sender doesn't redeliver.
func (d *Dispatcher) handleLocations(ctx context.Context, tl spectacle.Timeline, n spectacle.Notification) error {
	if n.ItemID == "" {
		slog.ErrorContext(ctx, "locations notification missing item id")
		return nil
	}

	loc, err := tl.Location(ctx, n.ItemID)
	if err != nil {
		slog.ErrorContext(ctx, "error fetching location", "err", err)
		return nil
	}
	if loc.Latitude == nil || loc.Longitude == nil {
		slog.ErrorContext(ctx, "location has no coordinates", "location_id", loc.ID)
		return nil
	}

	slog.InfoContext(ctx, "new location", "lat", *loc.Latitude, "lng", *loc.Longitude)

	events, err := d.content.NearbyEvents(ctx, *loc.Latitude, *loc.Longitude)
	if err != nil {
		slog.ErrorContext(ctx, "error fetching nearby events",
			"reason", string(specerrs.ReasonUpstreamFetch),
			"err", err,
		)
		return nil
	}

	item, err := composeNearbyEvents(events).Item()
	if err != nil {
		return err
	}
	item.Location = &loc
	item.MenuItems = nearbyEventsMenu()

	return d.writer.Insert(ctx, tl, item, nil)
}

// The menu attached to every nearby-events card: a jump into the
// social stream and a way to dismiss it.
func nearbyEventsMenu() []spectacle.MenuItem {
	return []spectacle.MenuItem{
		{
			Action: "CUSTOM",
			ID:     socialStreamPayload,
			Values: []spectacle.MenuValue{
				{DisplayName: "Social Stream", IconURL: socialStreamIconURL},
			},
		},
		{Action: "DELETE"},
	}
}
