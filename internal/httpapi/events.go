package httpapi

import (
	"net/http"
)

// handleEvents godoc
// @Summary      Follow session events
// @Description  Streams session lifecycle events as NDJSON until the client disconnects.
// @Tags         ops
// @Produce      application/x-ndjson
// @Success      200
// @Failure      404  {object}  types.ErrorResponse
// @Router       /events [get]
func handleEvents(w http.ResponseWriter, r *http.Request) {
	if eventSub == nil {
		writeJSONError(w, http.StatusNotFound, "event stream not enabled")
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	msgs, err := eventSub.Subscribe(ctx, eventTopic)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "subscribe failed")
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	flush()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			_, werr := w.Write(append(msg.Payload, '\n'))
			msg.Ack()
			if werr != nil {
				return
			}
			flush()
		}
	}
}
