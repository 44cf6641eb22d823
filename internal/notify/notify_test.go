package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	specerrs "github.com/jdholdren/spectacle/internal/errors"
	"github.com/jdholdren/spectacle/internal/spectacle"
)

type insertCall struct {
	item  spectacle.TimelineItem
	media *spectacle.MediaPayload
}

// In-memory stand-in for the remote timeline service.
type fakeTimeline struct {
	items       map[string]spectacle.TimelineItem
	locations   map[string]spectacle.Location
	attachments map[string]spectacle.Attachment

	contentStatus int
	contentData   []byte

	insertErr error
	inserted  []insertCall
}

func (f *fakeTimeline) Item(_ context.Context, id string) (spectacle.TimelineItem, error) {
	item, ok := f.items[id]
	if !ok {
		return spectacle.TimelineItem{}, errors.New("item not found")
	}
	return item, nil
}

func (f *fakeTimeline) Location(_ context.Context, id string) (spectacle.Location, error) {
	loc, ok := f.locations[id]
	if !ok {
		return spectacle.Location{}, errors.New("location not found")
	}
	return loc, nil
}

func (f *fakeTimeline) Attachment(_ context.Context, itemID, attachmentID string) (spectacle.Attachment, error) {
	att, ok := f.attachments[itemID+"/"+attachmentID]
	if !ok {
		return spectacle.Attachment{}, errors.New("attachment not found")
	}
	return att, nil
}

func (f *fakeTimeline) AttachmentContent(_ context.Context, _ string) (int, []byte, error) {
	if f.contentStatus == 0 {
		return http.StatusOK, f.contentData, nil
	}
	return f.contentStatus, nil, nil
}

func (f *fakeTimeline) Insert(_ context.Context, item spectacle.TimelineItem, media *spectacle.MediaPayload) (spectacle.TimelineItem, error) {
	if f.insertErr != nil {
		return spectacle.TimelineItem{}, f.insertErr
	}
	f.inserted = append(f.inserted, insertCall{item: item, media: media})
	return item, nil
}

type fakeResolver struct {
	tl  spectacle.Timeline
	err error
}

func (f fakeResolver) Resolve(_ context.Context, _ string) (spectacle.Timeline, error) {
	return f.tl, f.err
}

type fakeContent struct {
	events    []spectacle.NearbyEvent
	eventsErr error
	feed      []spectacle.FeedEntry
	feedErr   error
}

func (f fakeContent) NearbyEvents(_ context.Context, _, _ float64) ([]spectacle.NearbyEvent, error) {
	return f.events, f.eventsErr
}

func (f fakeContent) SocialFeed(_ context.Context) ([]spectacle.FeedEntry, error) {
	return f.feed, f.feedErr
}

func newTestDispatcher(t *testing.T, tl *fakeTimeline, content fakeContent) *Dispatcher {
	t.Helper()

	w, err := NewWriter("https://spectacle.example.com")
	require.NoError(t, err)

	return NewDispatcher(fakeResolver{tl: tl}, content, w)
}

func TestDispatch_NoCredentials(t *testing.T) {
	w, err := NewWriter("https://spectacle.example.com")
	require.NoError(t, err)
	d := NewDispatcher(fakeResolver{err: spectacle.ErrNoCredentials}, fakeContent{}, w)

	err = d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:  "u1",
		Collection: spectacle.CollectionTimeline,
	})
	require.Error(t, err)

	var specErr *specerrs.Error
	require.ErrorAs(t, err, &specErr)
	assert.Equal(t, http.StatusUnauthorized, specErr.Status)
	assert.Equal(t, specerrs.ReasonUnauthorized, specErr.Reason)
}

func TestDispatch_UnknownCollection(t *testing.T) {
	tl := &fakeTimeline{}
	d := newTestDispatcher(t, tl, fakeContent{})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:  "u1",
		Collection: spectacle.ParseCollection("calendar"),
	})
	require.NoError(t, err)
	assert.Empty(t, tl.inserted)
}

func TestDispatch_Locations_EndToEnd(t *testing.T) {
	var (
		lat, lng = 1.0, 2.0
		tl       = &fakeTimeline{
			locations: map[string]spectacle.Location{
				"i1": {ID: "i1", Latitude: &lat, Longitude: &lng},
			},
		}
	)
	d := newTestDispatcher(t, tl, fakeContent{
		events: []spectacle.NearbyEvent{{Title: "A"}, {Title: "B"}, {Title: "C"}},
	})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:  "u1",
		Collection: spectacle.CollectionLocations,
		ItemID:     "i1",
	})
	require.NoError(t, err)

	require.Len(t, tl.inserted, 1)
	got := tl.inserted[0].item

	assert.Equal(t, 3, strings.Count(got.HTML, "<li>"))
	assert.Contains(t, got.HTML, "<li>A</li>")
	assert.Contains(t, got.HTML, "Nearby Events")
	assert.Empty(t, got.Text)

	// The original location is echoed onto the new card
	require.NotNil(t, got.Location)
	assert.Equal(t, "i1", got.Location.ID)

	// Two menu items: the social stream jump and a delete
	require.Len(t, got.MenuItems, 2)
	assert.Equal(t, "CUSTOM", got.MenuItems[0].Action)
	assert.Equal(t, "social-stream", got.MenuItems[0].ID)
	assert.Equal(t, "Social Stream", got.MenuItems[0].Values[0].DisplayName)
	assert.Equal(t, "DELETE", got.MenuItems[1].Action)

	require.NotNil(t, got.Notification)
	assert.Equal(t, "DEFAULT", got.Notification.Level)
}

func TestDispatch_Locations_NoCoordinates(t *testing.T) {
	tl := &fakeTimeline{
		locations: map[string]spectacle.Location{"i1": {ID: "i1"}},
	}
	d := newTestDispatcher(t, tl, fakeContent{})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:  "u1",
		Collection: spectacle.CollectionLocations,
		ItemID:     "i1",
	})
	require.NoError(t, err)
	assert.Empty(t, tl.inserted)
}

func TestDispatch_Locations_UpstreamFetchFails(t *testing.T) {
	var (
		lat, lng = 1.0, 2.0
		tl       = &fakeTimeline{
			locations: map[string]spectacle.Location{
				"i1": {ID: "i1", Latitude: &lat, Longitude: &lng},
			},
		}
	)
	d := newTestDispatcher(t, tl, fakeContent{eventsErr: errors.New("directory down")})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:  "u1",
		Collection: spectacle.CollectionLocations,
		ItemID:     "i1",
	})
	require.NoError(t, err)
	assert.Empty(t, tl.inserted)
}

func TestDispatch_Share_NoAttachments(t *testing.T) {
	tl := &fakeTimeline{
		items: map[string]spectacle.TimelineItem{
			"i1": {ID: "i1", Text: "look at this"},
		},
	}
	d := newTestDispatcher(t, tl, fakeContent{})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:   "u1",
		Collection:  spectacle.CollectionTimeline,
		ItemID:      "i1",
		UserActions: []spectacle.UserAction{{Type: spectacle.ActionShare}},
	})
	require.NoError(t, err)

	require.Len(t, tl.inserted, 1)
	assert.Equal(t, "Echoing your shared item: look at this", tl.inserted[0].item.Text)
	assert.Empty(t, tl.inserted[0].item.HTML)
	assert.Nil(t, tl.inserted[0].media)
}

func TestDispatch_Share_EmptyText(t *testing.T) {
	tl := &fakeTimeline{
		items: map[string]spectacle.TimelineItem{"i1": {ID: "i1"}},
	}
	d := newTestDispatcher(t, tl, fakeContent{})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:   "u1",
		Collection:  spectacle.CollectionTimeline,
		ItemID:      "i1",
		UserActions: []spectacle.UserAction{{Type: spectacle.ActionShare}},
	})
	require.NoError(t, err)

	require.Len(t, tl.inserted, 1)
	assert.Equal(t, "Echoing your shared item: ", tl.inserted[0].item.Text)
}

func TestDispatch_Share_AttachmentUnavailable(t *testing.T) {
	tl := &fakeTimeline{
		items: map[string]spectacle.TimelineItem{
			"i1": {
				ID:   "i1",
				Text: "with a photo",
				Attachments: []spectacle.Attachment{
					{ID: "a1", ContentType: "image/png", ContentURL: "http://cdn.example.com/a1"},
				},
			},
		},
		attachments: map[string]spectacle.Attachment{
			"i1/a1": {ID: "a1", ContentType: "image/png", ContentURL: "http://cdn.example.com/a1"},
		},
		contentStatus: http.StatusNotFound,
	}
	d := newTestDispatcher(t, tl, fakeContent{})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:   "u1",
		Collection:  spectacle.CollectionTimeline,
		ItemID:      "i1",
		UserActions: []spectacle.UserAction{{Type: spectacle.ActionShare}},
	})
	require.NoError(t, err)

	// The echo still goes out, just without media
	require.Len(t, tl.inserted, 1)
	assert.Equal(t, "Echoing your shared item: with a photo", tl.inserted[0].item.Text)
	assert.Nil(t, tl.inserted[0].media)
}

func TestDispatch_Share_WithAttachment(t *testing.T) {
	tl := &fakeTimeline{
		items: map[string]spectacle.TimelineItem{
			"i1": {
				ID:   "i1",
				Text: "with a photo",
				Attachments: []spectacle.Attachment{
					{ID: "a1"},
					{ID: "a2"}, // never touched: only the first is propagated
				},
			},
		},
		attachments: map[string]spectacle.Attachment{
			"i1/a1": {ID: "a1", ContentType: "image/png", ContentURL: "http://cdn.example.com/a1"},
		},
		contentData: []byte("png-bytes"),
	}
	d := newTestDispatcher(t, tl, fakeContent{})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:   "u1",
		Collection:  spectacle.CollectionTimeline,
		ItemID:      "i1",
		UserActions: []spectacle.UserAction{{Type: spectacle.ActionShare}},
	})
	require.NoError(t, err)

	require.Len(t, tl.inserted, 1)
	require.NotNil(t, tl.inserted[0].media)
	assert.Equal(t, "image/png", tl.inserted[0].media.ContentType)
	assert.Equal(t, []byte("png-bytes"), tl.inserted[0].media.Data)
}

func TestDispatch_Timeline_SecondActionRecognized(t *testing.T) {
	tl := &fakeTimeline{
		items: map[string]spectacle.TimelineItem{"i1": {ID: "i1", Text: "hi"}},
	}
	d := newTestDispatcher(t, tl, fakeContent{})

	// The first action is unrecognized; the scan keeps going and the
	// SHARE is still handled.
	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:  "u1",
		Collection: spectacle.CollectionTimeline,
		ItemID:     "i1",
		UserActions: []spectacle.UserAction{
			{Type: spectacle.ParseActionType("PIN")},
			{Type: spectacle.ActionShare},
		},
	})
	require.NoError(t, err)
	require.Len(t, tl.inserted, 1)
	assert.Equal(t, "Echoing your shared item: hi", tl.inserted[0].item.Text)
}

func TestDispatch_Timeline_FirstRecognizedWins(t *testing.T) {
	tl := &fakeTimeline{
		items: map[string]spectacle.TimelineItem{"i1": {ID: "i1", Text: "hi"}},
	}
	d := newTestDispatcher(t, tl, fakeContent{
		feed: []spectacle.FeedEntry{{Text: "should never be inserted"}},
	})

	// SHARE comes first, so the social-stream action after it must not
	// run: at most one derived side effect per notification.
	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:  "u1",
		Collection: spectacle.CollectionTimeline,
		ItemID:     "i1",
		UserActions: []spectacle.UserAction{
			{Type: spectacle.ActionShare},
			{Type: spectacle.ActionCustom, Payload: "social-stream"},
		},
	})
	require.NoError(t, err)

	require.Len(t, tl.inserted, 1)
	assert.Equal(t, "Echoing your shared item: hi", tl.inserted[0].item.Text)
}

func TestDispatch_Timeline_NoRecognizedActions(t *testing.T) {
	tl := &fakeTimeline{}
	d := newTestDispatcher(t, tl, fakeContent{})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:  "u1",
		Collection: spectacle.CollectionTimeline,
		UserActions: []spectacle.UserAction{
			{Type: spectacle.ParseActionType("PIN")},
			{Type: spectacle.ActionCustom, Payload: "something-else"},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, tl.inserted)
}

func TestDispatch_SocialStream(t *testing.T) {
	tl := &fakeTimeline{}
	d := newTestDispatcher(t, tl, fakeContent{
		feed: []spectacle.FeedEntry{
			{Text: "one", ImageURL: ""},
			{Text: "two"},
			{Text: "three"},
		},
	})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:   "u1",
		Collection:  spectacle.CollectionTimeline,
		UserActions: []spectacle.UserAction{{Type: spectacle.ActionCustom, Payload: "social-stream"}},
	})
	require.NoError(t, err)

	// One insert call per entry
	require.Len(t, tl.inserted, 3)
	for _, call := range tl.inserted {
		assert.NotEmpty(t, call.item.HTML)
		assert.Empty(t, call.item.Text)
	}
	assert.Contains(t, tl.inserted[0].item.HTML, "one")
}

func TestDispatch_SocialStream_FeedFetchFails(t *testing.T) {
	tl := &fakeTimeline{}
	d := newTestDispatcher(t, tl, fakeContent{feedErr: errors.New("feed down")})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:   "u1",
		Collection:  spectacle.CollectionTimeline,
		UserActions: []spectacle.UserAction{{Type: spectacle.ActionCustom, Payload: "social-stream"}},
	})
	require.NoError(t, err)
	assert.Empty(t, tl.inserted)
}

func TestDispatch_InsertFailed(t *testing.T) {
	tl := &fakeTimeline{
		items:     map[string]spectacle.TimelineItem{"i1": {ID: "i1", Text: "hi"}},
		insertErr: errors.New("service outage"),
	}
	d := newTestDispatcher(t, tl, fakeContent{})

	err := d.Dispatch(context.Background(), spectacle.Notification{
		UserToken:   "u1",
		Collection:  spectacle.CollectionTimeline,
		ItemID:      "i1",
		UserActions: []spectacle.UserAction{{Type: spectacle.ActionShare}},
	})
	require.Error(t, err)

	var specErr *specerrs.Error
	require.ErrorAs(t, err, &specErr)
	assert.Equal(t, http.StatusBadGateway, specErr.Status)
	assert.Equal(t, specerrs.ReasonInsertFailed, specErr.Reason)
}
