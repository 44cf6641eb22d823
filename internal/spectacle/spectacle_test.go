package spectacle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCollection(t *testing.T) {
	for wire, want := range map[string]Collection{
		"locations": CollectionLocations,
		"timeline":  CollectionTimeline,
		"calendar":  CollectionUnknown,
		"Timeline":  CollectionUnknown,
		"":          CollectionUnknown,
	} {
		assert.Equal(t, want, ParseCollection(wire), "wire value %q", wire)
	}
}

func TestParseActionType(t *testing.T) {
	for wire, want := range map[string]ActionType{
		"SHARE":  ActionShare,
		"CUSTOM": ActionCustom,
		"share":  ActionUnknown,
		"PIN":    ActionUnknown,
		"":       ActionUnknown,
	} {
		assert.Equal(t, want, ParseActionType(wire), "wire value %q", wire)
	}
}

func TestComposedBodyValidate(t *testing.T) {
	for name, tc := range map[string]struct {
		body    ComposedBody
		wantErr bool
	}{
		"html only": {
			body: ComposedBody{HTML: "<article></article>"},
		},
		"text only": {
			body: ComposedBody{Text: "hello"},
		},
		"both set": {
			body:    ComposedBody{HTML: "<p>x</p>", Text: "x"},
			wantErr: true,
		},
		"neither set": {
			body:    ComposedBody{},
			wantErr: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			err := tc.body.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestComposedBodyItem(t *testing.T) {
	item, err := ComposedBody{Text: "hello"}.Item()
	require.NoError(t, err)
	assert.Equal(t, "hello", item.Text)
	assert.Empty(t, item.HTML)
	require.NotNil(t, item.Notification)
	assert.Equal(t, NotificationLevelDefault, item.Notification.Level)

	item, err = ComposedBody{HTML: "<p>hi</p>", NotificationLevel: "LOUD"}.Item()
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", item.HTML)
	assert.Equal(t, "LOUD", item.Notification.Level)

	_, err = ComposedBody{}.Item()
	assert.Error(t, err)
}
