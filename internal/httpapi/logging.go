package httpapi

import (
	"bytes"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// statusClientClosedRequest is logged when the client disconnects before a
// response could be written (nginx's 499).
const statusClientClosedRequest = 499

var zlog = zerolog.Nop()

// SetLogger installs the logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// streamLogger echoes complete NDJSON lines to the debug log while a
// response is streamed.
type streamLogger struct {
	pending []byte
	route   string
}

func (sl *streamLogger) Write(p []byte) (int, error) {
	sl.pending = append(sl.pending, p...)
	for {
		i := bytes.IndexByte(sl.pending, '\n')
		if i < 0 {
			return len(p), nil
		}
		if i > 0 {
			zlog.Debug().Str("route", sl.route).Str("line", string(sl.pending[:i])).Msg("stream")
		}
		sl.pending = sl.pending[i+1:]
	}
}

// parseRequestLevel maps a level name to a zerolog level. Empty and "off"
// disable request logging; unknown names fall back to info.
func parseRequestLevel(s string) zerolog.Level {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "", "off":
		return zerolog.Disabled
	case "1":
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

var defaultRequestLevel = parseRequestLevel(os.Getenv("LLAMAD_HTTP_LOG_LEVEL"))

// requestLogLevel honours ?log= first, then the X-Log-Level header.
func requestLogLevel(r *http.Request) zerolog.Level {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseRequestLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseRequestLevel(v)
	}
	return defaultRequestLevel
}

func withRequestID(e *zerolog.Event, r *http.Request) *zerolog.Event {
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	return e
}

func logRequestStart(r *http.Request, lvl zerolog.Level, prompt string) {
	if lvl > zerolog.InfoLevel {
		return
	}
	withRequestID(zlog.Info(), r).
		Str("path", r.URL.Path).
		Int("prompt_chars", len(prompt)).
		Msg("request start")
}

// logRequestEnd logs at info, or only failures when the level is error.
func logRequestEnd(r *http.Request, lvl zerolog.Level, status int, start time.Time, err error) {
	var e *zerolog.Event
	switch {
	case err != nil && lvl <= zerolog.ErrorLevel:
		e = zlog.Error().Err(err)
	case lvl <= zerolog.InfoLevel:
		e = zlog.Info()
	default:
		return
	}
	withRequestID(e, r).
		Str("path", r.URL.Path).
		Int("status", status).
		Dur("dur", time.Since(start)).
		Msg("request end")
}
