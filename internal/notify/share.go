package notify

import (
	"context"
	"log/slog"
	"net/http"

	specerrs "github.com/jdholdren/spectacle/internal/errors"
	"github.com/jdholdren/spectacle/internal/spectacle"
)

// echoShare republishes a shared item back into the user's timeline:
// the original text behind a fixed prefix, plus the first attachment's
// content when it can be retrieved.
func (d *Dispatcher) echoShare(ctx context.Context, tl spectacle.Timeline, itemID string) error {
	if itemID == "" {
		slog.ErrorContext(ctx, "share notification missing item id")
		return nil
	}

	item, err := tl.Item(ctx, itemID)
	if err != nil {
		slog.ErrorContext(ctx, "error fetching shared item", "err", err)
		return nil
	}

	media := d.shareMedia(ctx, tl, itemID, item.Attachments)

	echo, err := composeShareEcho(item.Text).Item()
	if err != nil {
		return err
	}

	return d.writer.Insert(ctx, tl, echo, media)
}

// shareMedia resolves the attachment content to republish, or nil when
// the item has none or the content isn't retrievable. An unavailable
// attachment never blocks the echo; the item just goes out without
// media.
func (d *Dispatcher) shareMedia(ctx context.Context, tl spectacle.Timeline, itemID string, refs []spectacle.Attachment) *spectacle.MediaPayload {
	if len(refs) > spectacle.MaxAttachmentsProcessed {
		refs = refs[:spectacle.MaxAttachmentsProcessed]
	}

	for _, ref := range refs {
		att, err := tl.Attachment(ctx, itemID, ref.ID)
		if err != nil {
			slog.ErrorContext(ctx, "error fetching attachment metadata", "attachment_id", ref.ID, "err", err)
			continue
		}

		status, data, err := tl.AttachmentContent(ctx, att.ContentURL)
		if err != nil {
			slog.ErrorContext(ctx, "error fetching attachment content", "attachment_id", ref.ID, "err", err)
			continue
		}
		if status != http.StatusOK {
			slog.InfoContext(ctx, "unable to retrieve attachment",
				"reason", string(specerrs.ReasonAttachmentUnavailable),
				"attachment_id", ref.ID,
				"status", status,
			)
			continue
		}

		return &spectacle.MediaPayload{
			ContentType: att.ContentType,
			Data:        data,
		}
	}

	return nil
}
