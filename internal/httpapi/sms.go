package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"llamad/internal/session"
	"llamad/pkg/types"
)

const (
	smsSentMessage      = "SMS sent successfully."
	smsProcessedMessage = "SMS processed successfully"
	smsFailedMessage    = "Error processing SMS"
	smsDedupeCapacity   = 1024
)

// smsHandler relays inbound text messages through the session. Outbound
// sending is a stub that only logs.
type smsHandler struct {
	svc     Service
	limiter *rate.Limiter
	replies *ttlcache.Cache[string, types.SMSReceiveResponse] // by messageId
}

func newSMSHandler(svc Service) *smsHandler {
	h := &smsHandler{svc: svc, limiter: rate.NewLimiter(smsRate, smsBurst)}
	if smsDedupeTTL > 0 {
		h.replies = ttlcache.New[string, types.SMSReceiveResponse](
			ttlcache.WithTTL[string, types.SMSReceiveResponse](smsDedupeTTL),
			ttlcache.WithCapacity[string, types.SMSReceiveResponse](smsDedupeCapacity),
			ttlcache.WithDisableTouchOnHit[string, types.SMSReceiveResponse](),
		)
		// Expired replies are evicted in the background until shutdown.
		go h.replies.Start()
		context.AfterFunc(serverBaseCtx, h.replies.Stop)
	}
	return h
}

func decodeSMS(w http.ResponseWriter, r *http.Request) (types.SMSMessage, bool) {
	var msg types.SMSMessage
	if !requireJSON(w, r) {
		return msg, false
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return msg, false
	}
	return msg, true
}

// send godoc
// @Summary      Send an SMS
// @Description  Logs the message and acknowledges it. No carrier is contacted.
// @Tags         sms
// @Accept       json
// @Produce      json
// @Param        message  body      types.SMSMessage  true  "Outbound message"
// @Success      200      {object}  types.SMSSendResponse
// @Failure      400      {object}  types.ErrorResponse
// @Router       /api/sms [post]
func (h *smsHandler) send(w http.ResponseWriter, r *http.Request) {
	msg, ok := decodeSMS(w, r)
	if !ok {
		return
	}
	zlog.Info().Str("phone", msg.PhoneNumber).Int("chars", len(msg.Message)).Msg("sending sms")
	writeJSON(w, http.StatusOK, types.SMSSendResponse{Status: "Success", Message: smsSentMessage})
}

// receive godoc
// @Summary      Receive an SMS
// @Description  Runs the inbound message through the conversation and returns the reply.
// @Tags         sms
// @Accept       json
// @Produce      json
// @Param        message  body      types.SMSMessage  true  "Inbound message"
// @Success      200      {object}  types.SMSReceiveResponse
// @Failure      400      {object}  types.SMSReceiveResponse
// @Failure      429      {object}  types.SMSReceiveResponse
// @Failure      500      {object}  types.SMSReceiveResponse
// @Router       /api/sms/receive [post]
func (h *smsHandler) receive(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		IncrementBackpressure("sms_rate")
		writeJSON(w, http.StatusTooManyRequests, types.SMSReceiveResponse{Success: false, Message: smsFailedMessage})
		return
	}
	msg, ok := decodeSMS(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(msg.Message) == "" {
		writeJSON(w, http.StatusBadRequest, types.SMSReceiveResponse{Success: false, Message: "message is required"})
		return
	}
	if h.replies != nil && msg.MessageID != "" {
		if item := h.replies.Get(msg.MessageID); item != nil {
			writeJSON(w, http.StatusOK, item.Value())
			return
		}
	}

	lvl := requestLogLevel(r)
	start := time.Now()
	logRequestStart(r, lvl, msg.Message)
	ctx, cancel := completionContext(r)
	defer cancel()

	res, err := h.svc.Stream(ctx, session.Prompt{Text: msg.Message}, nil)
	if err != nil {
		if cerr := r.Context().Err(); cerr != nil {
			logRequestEnd(r, lvl, statusClientClosedRequest, start, cerr)
			return
		}
		status, _ := mapError(err)
		zlog.Error().Err(err).Str("phone", msg.PhoneNumber).Msg("sms processing failed")
		writeJSON(w, status, types.SMSReceiveResponse{Success: false, Message: smsFailedMessage})
		logRequestEnd(r, lvl, status, start, err)
		return
	}
	resp := types.SMSReceiveResponse{Success: true, Message: smsProcessedMessage, Response: res.Text}
	if h.replies != nil && msg.MessageID != "" {
		h.replies.Set(msg.MessageID, resp, ttlcache.DefaultTTL)
	}
	writeJSON(w, http.StatusOK, resp)
	logRequestEnd(r, lvl, http.StatusOK, start, nil)
}
