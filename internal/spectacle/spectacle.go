package spectacle

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoCredentials is returned by a [CredentialResolver] when no stored
// grant exists for the user token in a notification.
var ErrNoCredentials = errors.New("no stored credentials for user")

// Policies around how much derived content a single notification may
// produce. Named here so they're discoverable instead of buried in
// loop bodies.
const (
	// MaxFeedEntries caps how many upstream entries any single
	// composition will render.
	MaxFeedEntries = 5

	// MaxAttachmentsProcessed caps how many attachments of a shared
	// item get republished. Only the first one is ever propagated.
	MaxAttachmentsProcessed = 1
)

// NotificationLevelDefault is the notification level set on every item
// this service inserts.
const NotificationLevelDefault = "DEFAULT"

// Collection identifies which resource collection a notification is
// about. Unknown is a valid arm: unrecognized collections are
// acknowledged and ignored, never failed.
type Collection int

const (
	CollectionUnknown Collection = iota
	CollectionLocations
	CollectionTimeline
)

// ParseCollection maps the wire value onto the closed enum. Anything
// unrecognized lands on CollectionUnknown.
func ParseCollection(s string) Collection {
	switch s {
	case "locations":
		return CollectionLocations
	case "timeline":
		return CollectionTimeline
	default:
		return CollectionUnknown
	}
}

func (c Collection) String() string {
	switch c {
	case CollectionLocations:
		return "locations"
	case CollectionTimeline:
		return "timeline"
	default:
		return "unknown"
	}
}

// ActionType is the kind of user action carried in a timeline
// notification.
type ActionType int

const (
	ActionUnknown ActionType = iota
	ActionShare
	ActionCustom
)

func ParseActionType(s string) ActionType {
	switch s {
	case "SHARE":
		return ActionShare
	case "CUSTOM":
		return ActionCustom
	default:
		return ActionUnknown
	}
}

func (t ActionType) String() string {
	switch t {
	case ActionShare:
		return "SHARE"
	case ActionCustom:
		return "CUSTOM"
	default:
		return "unknown"
	}
}

type (
	// Notification is one parsed inbound webhook ping. Built once per
	// request and discarded after handling.
	Notification struct {
		UserToken   string
		Collection  Collection
		ItemID      string
		UserActions []UserAction
	}

	// UserAction selects a handler branch within the timeline
	// collection.
	UserAction struct {
		Type    ActionType
		Payload string
	}

	// TimelineItem is a unit of content in the remote timeline. The
	// service only reads and writes these through a [Timeline], never
	// caching them beyond a single request.
	TimelineItem struct {
		ID            string              `json:"id,omitempty"`
		Text          string              `json:"text,omitempty"`
		HTML          string              `json:"html,omitempty"`
		Attachments   []Attachment        `json:"attachments,omitempty"`
		Location      *Location           `json:"location,omitempty"`
		MenuItems     []MenuItem          `json:"menuItems,omitempty"`
		IsBundleCover bool                `json:"isBundleCover,omitempty"`
		BundleID      string              `json:"bundleId,omitempty"`
		Notification  *NotificationConfig `json:"notification,omitempty"`
	}

	// Attachment references a binary resource on a timeline item. Its
	// content is only fetched when a SHARE requires republishing it.
	Attachment struct {
		ID          string `json:"id"`
		ContentType string `json:"contentType"`
		ContentURL  string `json:"contentUrl"`
	}

	// Location is a position resource from the timeline service.
	// Latitude and longitude are pointers because the service omits
	// them when it has no fix.
	Location struct {
		ID        string   `json:"id,omitempty"`
		Latitude  *float64 `json:"latitude,omitempty"`
		Longitude *float64 `json:"longitude,omitempty"`
	}

	MenuItem struct {
		Action string      `json:"action"`
		ID     string      `json:"id,omitempty"`
		Values []MenuValue `json:"values,omitempty"`
	}

	MenuValue struct {
		DisplayName string `json:"displayName,omitempty"`
		IconURL     string `json:"iconUrl,omitempty"`
	}

	NotificationConfig struct {
		Level string `json:"level"`
	}

	// MediaPayload is raw bytes attached to an insert as a resumable
	// upload.
	MediaPayload struct {
		ContentType string
		Data        []byte
	}

	// ComposedBody is the wire-ready shape a handler passes to an
	// insert. Exactly one of HTML or Text must be set.
	ComposedBody struct {
		HTML              string
		Text              string
		Media             *MediaPayload
		NotificationLevel string
	}

	// OutboundMessage is one derived message headed for the timeline.
	// The bundle fields are a seam for batching related items; current
	// behavior inserts one item per message.
	OutboundMessage struct {
		UseHTML       bool
		Text          string
		ImageURL      string
		IsBundleCover bool
		BundleID      string
	}

	// NearbyEvent is one result from the nearby-events content source.
	NearbyEvent struct {
		Title string
	}

	// FeedEntry is one entry from the social-stream feed.
	FeedEntry struct {
		Text     string
		ImageURL string
	}
)

// Validate enforces the body-shape invariant: exactly one of HTML and
// Text is populated, never both and never neither.
func (b ComposedBody) Validate() error {
	if b.HTML != "" && b.Text != "" {
		return fmt.Errorf("composed body has both html and text set")
	}
	if b.HTML == "" && b.Text == "" {
		return fmt.Errorf("composed body has neither html nor text set")
	}

	return nil
}

// Item converts the body into an insertable timeline item, defaulting
// the notification level.
func (b ComposedBody) Item() (TimelineItem, error) {
	if err := b.Validate(); err != nil {
		return TimelineItem{}, err
	}

	level := b.NotificationLevel
	if level == "" {
		level = NotificationLevelDefault
	}

	return TimelineItem{
		Text:         b.Text,
		HTML:         b.HTML,
		Notification: &NotificationConfig{Level: level},
	}, nil
}

type (
	// CredentialResolver turns the user token from a notification into
	// a timeline client authorized as that user.
	CredentialResolver interface {
		// Resolve returns [ErrNoCredentials] when there is no stored
		// grant for the token.
		Resolve(ctx context.Context, userToken string) (Timeline, error)
	}

	// Timeline is the typed capability against the remote timeline
	// service, scoped to a single user.
	Timeline interface {
		Item(ctx context.Context, id string) (TimelineItem, error)
		Location(ctx context.Context, id string) (Location, error)
		Attachment(ctx context.Context, itemID, attachmentID string) (Attachment, error)
		// AttachmentContent fetches raw bytes from an attachment's
		// content URL. A non-200 status is reported through the status
		// return, not the error.
		AttachmentContent(ctx context.Context, url string) (status int, data []byte, err error)
		Insert(ctx context.Context, item TimelineItem, media *MediaPayload) (TimelineItem, error)
	}

	// ContentSource fetches and parses the third-party aggregation
	// endpoints.
	ContentSource interface {
		NearbyEvents(ctx context.Context, lat, lng float64) ([]NearbyEvent, error)
		SocialFeed(ctx context.Context) ([]FeedEntry, error)
	}
)
