package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"llamad/internal/llm"
	"llamad/internal/session"
	"llamad/pkg/types"
)

// handleRequest godoc
// @Summary      Complete a prompt
// @Description  Appends the prompt to the conversation and returns the full reply.
// @Tags         completion
// @Accept       json
// @Produce      json
// @Param        request  body      types.CompletionRequest  true  "Prompt"
// @Success      200      {object}  types.CompletionResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      413      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /request [post]
func handleRequest(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		var req types.CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		logRequestStart(r, lvl, req.Prompt)
		ctx, cancel := completionContext(r)
		defer cancel()

		res, err := svc.Stream(ctx, session.Prompt{Text: req.Prompt}, nil)
		if err != nil {
			// Client went away; nobody to answer.
			if cerr := r.Context().Err(); cerr != nil {
				logRequestEnd(r, lvl, statusClientClosedRequest, start, cerr)
				return
			}
			status, msg := mapError(err)
			writeJSONError(w, status, msg)
			logRequestEnd(r, lvl, status, start, err)
			return
		}
		writeJSON(w, http.StatusOK, types.CompletionResponse{Text: res.Text})
		logRequestEnd(r, lvl, http.StatusOK, start, nil)
	}
}

// handleInfer godoc
// @Summary      Stream a completion
// @Description  Streams NDJSON lines {"token":...} followed by a final {"done":true,...} line.
// @Tags         completion
// @Accept       json
// @Produce      application/x-ndjson
// @Param        request  body      types.InferRequest  true  "Prompt and generation options"
// @Success      200      {object}  types.InferLine
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Router       /infer [post]
func handleInfer(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		var req types.InferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// If exceeded size, MaxBytesReader may cause an error; still return 400 to avoid size leak details
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		flush := func() {}
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		lvl := requestLogLevel(r)
		writer := io.Writer(w)
		if lvl <= zerolog.DebugLevel {
			writer = io.MultiWriter(w, &streamLogger{route: routePatternOrPath(r)})
		}
		enc := json.NewEncoder(writer)
		start := time.Now()
		logRequestStart(r, lvl, req.Prompt)
		ctx, cancel := completionContext(r)
		defer cancel()

		streamed := false
		res, err := svc.Stream(ctx, inferPrompt(req), func(tok string) error {
			streamed = true
			if err := enc.Encode(types.InferLine{Token: tok}); err != nil {
				return err
			}
			flush()
			return nil
		})
		if err != nil {
			if cerr := r.Context().Err(); cerr != nil {
				logRequestEnd(r, lvl, statusClientClosedRequest, start, cerr)
				return
			}
			status, msg := mapError(err)
			if !streamed {
				writeJSONError(w, status, msg)
			} else {
				// Headers are gone; report in-band.
				_ = enc.Encode(types.InferLine{Done: true, Error: msg})
				flush()
			}
			logRequestEnd(r, lvl, status, start, err)
			return
		}
		_ = enc.Encode(types.InferLine{
			Done:         true,
			Content:      res.Text,
			FinishReason: res.FinishReason,
			Fragments:    res.Fragments,
			Dropped:      res.Dropped,
		})
		flush()
		logRequestEnd(r, lvl, http.StatusOK, start, nil)
	}
}

// inferPrompt maps request options onto a session prompt; unset sampling
// fields keep the session defaults.
func inferPrompt(req types.InferRequest) session.Prompt {
	p := session.Prompt{Text: req.Prompt, MaxTokens: req.MaxTokens, Stop: req.Stop}
	if req.Temperature != 0 || req.TopP != 0 || req.TopK != 0 || req.Seed != 0 || req.RepeatPenalty != 0 {
		p.Sampling = &llm.Sampling{
			Temperature:   req.Temperature,
			TopP:          req.TopP,
			TopK:          req.TopK,
			RepeatPenalty: req.RepeatPenalty,
			Seed:          req.Seed,
		}
	}
	return p
}
