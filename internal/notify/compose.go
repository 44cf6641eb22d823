package notify

import (
	"strings"

	goaway "github.com/TwiN/go-away"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jdholdren/spectacle/internal/spectacle"
)

const echoPrefix = "Echoing your shared item: "

var stripPolicy = bluemonday.StrictPolicy()

// safeText strips any markup from third-party text and escapes what
// remains, so upstream titles and posts can't inject into composed
// HTML.
func safeText(s string) string {
	return stripPolicy.Sanitize(strings.TrimSpace(s))
}

// composeNearbyEvents renders the nearby-events card: a labeled header
// and a list of at most [spectacle.MaxFeedEntries] event titles. Zero
// events still render the card with an empty list.
func composeNearbyEvents(events []spectacle.NearbyEvent) spectacle.ComposedBody {
	var b strings.Builder
	b.WriteString(`<article><section><div class="text-normal"><p style="color: #f16924;">Nearby Events</p><ul class="text-x-small">`)
	for i, ev := range events {
		if i == spectacle.MaxFeedEntries {
			break
		}
		b.WriteString("<li>")
		b.WriteString(safeText(ev.Title))
		b.WriteString("</li>")
	}
	b.WriteString(`</ul></div></section></article>`)

	return spectacle.ComposedBody{
		HTML:              b.String(),
		NotificationLevel: spectacle.NotificationLevelDefault,
	}
}

// composeShareEcho builds the plain-text echo body. An item with no
// text still gets the prefix with an empty remainder.
func composeShareEcho(originalText string) spectacle.ComposedBody {
	return spectacle.ComposedBody{
		Text:              echoPrefix + originalText,
		NotificationLevel: spectacle.NotificationLevelDefault,
	}
}

// composeSocialStream turns feed entries into outbound messages, one
// per entry, capped at [spectacle.MaxFeedEntries]. The slice shape is
// the seam for batching related items into a bundle later; the writer
// currently inserts them one at a time.
func composeSocialStream(entries []spectacle.FeedEntry) []spectacle.OutboundMessage {
	if len(entries) > spectacle.MaxFeedEntries {
		entries = entries[:spectacle.MaxFeedEntries]
	}

	msgs := make([]spectacle.OutboundMessage, 0, len(entries))
	for _, entry := range entries {
		msgs = append(msgs, spectacle.OutboundMessage{
			UseHTML: true,
			Text:    composeSocialEntry(entry),
		})
	}

	return msgs
}

// composeSocialEntry renders the card fragment for one feed entry. The
// image and the paragraph are each optional; an entry with neither
// still produces the bare wrapper.
func composeSocialEntry(entry spectacle.FeedEntry) string {
	var b strings.Builder
	b.WriteString(`<article class="photo" style="background-color:#00a2a5">`)
	if entry.ImageURL != "" {
		b.WriteString(`<img src="`)
		b.WriteString(safeText(entry.ImageURL))
		b.WriteString(`" height="100%">`)
	}
	b.WriteString(`<div class="photo-overlay"></div><section>`)
	if entry.Text != "" {
		// Third-party posts get censored before going onto someone's
		// timeline.
		b.WriteString(`<p class="text-auto-size">`)
		b.WriteString(safeText(goaway.Censor(entry.Text)))
		b.WriteString(`</p>`)
	}
	b.WriteString(`</section></article>`)

	return b.String()
}
