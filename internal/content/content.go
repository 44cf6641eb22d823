// Package content fetches and parses the third-party aggregation
// endpoints that derived timeline items are built from.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jdholdren/spectacle/internal/spectacle"
)

// Parameters sent to the nearby-events directory. The radius and query
// term are fixed; only the coordinates vary per notification.
const (
	nearbyRadius = "0.5"
	nearbyQuery  = "EB_DEMO 2013"
)

var fetchClient = &http.Client{
	Timeout: time.Second * 10,
}

// Source implements [spectacle.ContentSource] against two fixed
// endpoints.
type Source struct {
	nearbyURL string
	feedURL   string
	client    *http.Client
}

func New(nearbyURL, feedURL string) *Source {
	return &Source{
		nearbyURL: nearbyURL,
		feedURL:   feedURL,
		client:    fetchClient,
	}
}

// Represents a response from the nearby-events directory.
type nearbyResp struct {
	Events []struct {
		Title string `json:"title"`
	} `json:"events"`
}

func (s *Source) NearbyEvents(ctx context.Context, lat, lng float64) ([]spectacle.NearbyEvent, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("radius", nearbyRadius)
	q.Set("q", nearbyQuery)

	var resp nearbyResp
	if err := s.getJSON(ctx, s.nearbyURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("error fetching nearby events: %w", err)
	}

	events := make([]spectacle.NearbyEvent, 0, len(resp.Events))
	for _, ev := range resp.Events {
		events = append(events, spectacle.NearbyEvent{
			Title: clip(ev.Title),
		})
	}

	return events, nil
}

// Represents a response from the social-stream feed.
type feedResp struct {
	Data []struct {
		Text   string `json:"text"`
		Images *struct {
			LowResolution string `json:"low_resolution"`
		} `json:"images"`
	} `json:"data"`
}

func (s *Source) SocialFeed(ctx context.Context) ([]spectacle.FeedEntry, error) {
	var resp feedResp
	if err := s.getJSON(ctx, s.feedURL, &resp); err != nil {
		return nil, fmt.Errorf("error fetching social feed: %w", err)
	}

	entries := make([]spectacle.FeedEntry, 0, len(resp.Data))
	for _, d := range resp.Data {
		entry := spectacle.FeedEntry{
			Text: clip(d.Text),
		}
		if d.Images != nil {
			entry.ImageURL = d.Images.LowResolution
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *Source) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("error getting url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}

	return nil
}

const maxTextBytes = 2048

// Limits the length of upstream text so there's not a massive chunk
// being rendered onto a card. The cut lands on a rune boundary so a
// multi-byte character is never split into invalid UTF-8.
func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxTextBytes {
		return s
	}

	cut := maxTextBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
