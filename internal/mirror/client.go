// Package mirror is a typed client for the Mirror-style timeline API.
// A Client is scoped to a single user: it is built around the
// authorized http client the credential resolver hands out.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jdholdren/spectacle/internal/spectacle"
)

// Bounds on the media upload leg. The upload protocol is resumable, so
// a failed attempt may be retried without duplicating the item.
const (
	uploadMaxRetries = 3
	uploadRetryBase  = 500 * time.Millisecond
)

// Compile-time check that the client covers the timeline capability.
var _ spectacle.Timeline = (*Client)(nil)

type Client struct {
	base *url.URL
	http *http.Client
}

// New builds a client against baseURL, issuing requests through
// httpClient (expected to carry the user's authorization).
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing base url: %w", err)
	}

	return &Client{
		base: u,
		http: httpClient,
	}, nil
}

func (c *Client) Item(ctx context.Context, id string) (spectacle.TimelineItem, error) {
	var item spectacle.TimelineItem
	if err := c.getJSON(ctx, "/timeline/"+url.PathEscape(id), &item); err != nil {
		return spectacle.TimelineItem{}, fmt.Errorf("error fetching timeline item: %w", err)
	}

	return item, nil
}

func (c *Client) Location(ctx context.Context, id string) (spectacle.Location, error) {
	var loc spectacle.Location
	if err := c.getJSON(ctx, "/locations/"+url.PathEscape(id), &loc); err != nil {
		return spectacle.Location{}, fmt.Errorf("error fetching location: %w", err)
	}

	return loc, nil
}

func (c *Client) Attachment(ctx context.Context, itemID, attachmentID string) (spectacle.Attachment, error) {
	var att spectacle.Attachment
	path := "/timeline/" + url.PathEscape(itemID) + "/attachments/" + url.PathEscape(attachmentID)
	if err := c.getJSON(ctx, path, &att); err != nil {
		return spectacle.Attachment{}, fmt.Errorf("error fetching attachment: %w", err)
	}

	return att, nil
}

// AttachmentContent fetches the raw bytes behind an attachment's
// content URL. The status code is passed through so callers can decide
// how to degrade; only transport failures surface as errors.
func (c *Client) AttachmentContent(ctx context.Context, rawURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("error building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("error fetching attachment content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("error reading attachment content: %w", err)
	}

	return resp.StatusCode, data, nil
}

func (c *Client) Insert(ctx context.Context, item spectacle.TimelineItem, media *spectacle.MediaPayload) (spectacle.TimelineItem, error) {
	if media == nil {
		return c.insertJSON(ctx, item)
	}

	return c.insertMultipart(ctx, item, media)
}

func (c *Client) insertJSON(ctx context.Context, item spectacle.TimelineItem) (spectacle.TimelineItem, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return spectacle.TimelineItem{}, fmt.Errorf("error encoding item: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath("timeline").String(), bytes.NewReader(body))
	if err != nil {
		return spectacle.TimelineItem{}, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doInsert(req)
}

// insertMultipart uploads the item body and its media payload in one
// multipart/related request. The attempt is retried with backoff since
// the upload protocol tolerates partial transfers.
func (c *Client) insertMultipart(ctx context.Context, item spectacle.TimelineItem, media *spectacle.MediaPayload) (spectacle.TimelineItem, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json")
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return spectacle.TimelineItem{}, fmt.Errorf("error creating metadata part: %w", err)
	}
	if err := json.NewEncoder(metaPart).Encode(item); err != nil {
		return spectacle.TimelineItem{}, fmt.Errorf("error encoding item: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", media.ContentType)
	mediaPart, err := mw.CreatePart(mediaHeader)
	if err != nil {
		return spectacle.TimelineItem{}, fmt.Errorf("error creating media part: %w", err)
	}
	if _, err := mediaPart.Write(media.Data); err != nil {
		return spectacle.TimelineItem{}, fmt.Errorf("error writing media part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return spectacle.TimelineItem{}, fmt.Errorf("error finishing multipart body: %w", err)
	}

	uploadURL := c.base.JoinPath("timeline").String() + "?uploadType=multipart"
	payload := buf.Bytes()

	var inserted spectacle.TimelineItem
	backoff := retry.WithMaxRetries(uploadMaxRetries, retry.NewFibonacci(uploadRetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("error building request: %w", err)
		}
		req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

		got, err := c.doInsert(req)
		if err != nil {
			// Transient transport or server-side failures are worth
			// another attempt; everything else is not.
			return retry.RetryableError(err)
		}
		inserted = got

		return nil
	})
	if err != nil {
		return spectacle.TimelineItem{}, err
	}

	return inserted, nil
}

func (c *Client) doInsert(req *http.Request) (spectacle.TimelineItem, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return spectacle.TimelineItem{}, fmt.Errorf("error inserting item: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return spectacle.TimelineItem{}, fmt.Errorf("unexpected status inserting item: %d", resp.StatusCode)
	}

	var inserted spectacle.TimelineItem
	if err := json.NewDecoder(resp.Body).Decode(&inserted); err != nil {
		return spectacle.TimelineItem{}, fmt.Errorf("error decoding inserted item: %w", err)
	}

	return inserted, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.JoinPath(path).String(), nil)
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}

	resp, err := c.http.Do(req)
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
