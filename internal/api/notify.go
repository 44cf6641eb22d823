package api

import (
	"log/slog"
	"net/http"

	notifyv1 "github.com/jdholdren/spectacle/api/notify/v1"
	specerrs "github.com/jdholdren/spectacle/internal/errors"
	"github.com/jdholdren/spectacle/internal/server"
)

// handleNotify is the webhook endpoint. Malformed payloads are
// acknowledged with a 200 and dropped: the sender retries failure
// responses, and a retry won't fix bad data. The dispatcher's
// structured errors (unauthorized, insert failed) flow back through
// [server.HandlerFuncE] with their own statuses.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) error {
	body, err := server.DecodeValid[notifyv1.Notification](r.Body)
	if err != nil {
		slog.ErrorContext(r.Context(), "ignoring malformed notification",
			"reason", string(specerrs.ReasonMalformed),
			"err", err,
		)
		return server.WriteJSON(w, http.StatusOK, struct{}{})
	}

	if err := s.dispatcher.Dispatch(r.Context(), body.Domain()); err != nil {
		return err
	}

	return server.WriteJSON(w, http.StatusOK, struct{}{})
}
