package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	specerrs "github.com/jdholdren/spectacle/internal/errors"
	"github.com/jdholdren/spectacle/internal/spectacle"
)

const (
	// Budget for fetching an image referenced by an outbound message.
	// A slow host must not be able to stall the webhook request
	// indefinitely.
	imageFetchTimeout = 20 * time.Second

	// Composed-message images are uploaded with a fixed type.
	imageContentType = "image/jpeg"

	// Cap on how many image bytes get read into memory. Anything larger
	// is treated as a failed fetch and the message goes out without
	// media.
	maxImageBytes = 5 << 20
)

// Writer issues timeline inserts for the handlers. It owns the image
// fetch for outbound messages and the mapping of insert failures onto
// the error taxonomy; it never retries.
type Writer struct {
	base   *url.URL
	client *http.Client
}

// NewWriter builds a writer. Relative image URLs in outbound messages
// resolve against publicBaseURL, the address this service's own assets
// are served from.
func NewWriter(publicBaseURL string) (*Writer, error) {
	u, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing public base url: %w", err)
	}

	return &Writer{
		base:   u,
		client: &http.Client{Timeout: imageFetchTimeout},
	}, nil
}

// Insert pushes one item into the user's timeline. A failure here is a
// real downstream outage and the one timeline-branch error that fails
// the whole webhook request.
func (w *Writer) Insert(ctx context.Context, tl spectacle.Timeline, item spectacle.TimelineItem, media *spectacle.MediaPayload) error {
	if _, err := tl.Insert(ctx, item, media); err != nil {
		return specerrs.E(http.StatusBadGateway, specerrs.ReasonInsertFailed, err)
	}

	return nil
}

// Write resolves an outbound message into a wire body plus optional
// image media and inserts it. An image that can't be fetched degrades
// the message to no-media rather than dropping it.
func (w *Writer) Write(ctx context.Context, tl spectacle.Timeline, msg spectacle.OutboundMessage) error {
	body := spectacle.ComposedBody{NotificationLevel: spectacle.NotificationLevelDefault}
	if msg.UseHTML {
		body.HTML = msg.Text
	} else {
		body.Text = msg.Text
	}

	item, err := body.Item()
	if err != nil {
		return err
	}
	item.IsBundleCover = msg.IsBundleCover
	item.BundleID = msg.BundleID

	var media *spectacle.MediaPayload
	if msg.ImageURL != "" {
		data, err := w.fetchImage(ctx, msg.ImageURL)
		if err != nil {
			slog.ErrorContext(ctx, "error fetching image for item", "url", msg.ImageURL, "err", err)
		} else {
			media = &spectacle.MediaPayload{
				ContentType: imageContentType,
				Data:        data,
			}
		}
	}

	return w.Insert(ctx, tl, item, media)
}

func (w *Writer) fetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing image url: %w", err)
	}
	// Relative paths point back at this service's own assets.
	if !u.IsAbs() {
		u = w.base.ResolveReference(u)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}

	return data, nil
}
