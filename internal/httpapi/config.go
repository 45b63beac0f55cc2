package httpapi

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"golang.org/x/time/rate"
)

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Default is 1 MiB.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// inferTimeout bounds how long a completion request may run.
// Zero means no additional timeout beyond server/connection timeouts.
var inferTimeout = int64(0) // seconds

// SetInferTimeoutSeconds sets the completion timeout in seconds (0 disables).
func SetInferTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	inferTimeout = sec
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// SMS relay limits. Read when NewMux builds the handler.
var (
	smsRate      = rate.Limit(5)
	smsBurst     = 10
	smsDedupeTTL = 10 * time.Minute
)

// SetSMSOptions sets the inbound SMS rate (messages/second, 0 = unlimited),
// burst and the window in which a repeated messageId is answered from cache
// (0 disables dedupe).
func SetSMSOptions(perSecond float64, burst int, dedupeTTL time.Duration) {
	if perSecond <= 0 {
		smsRate = rate.Inf
	} else {
		smsRate = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	smsBurst = burst
	if dedupeTTL < 0 {
		dedupeTTL = 0
	}
	smsDedupeTTL = dedupeTTL
}

// Event stream source for GET /events. Nil disables the route.
var (
	eventSub   message.Subscriber
	eventTopic string
)

// SetEventSource makes GET /events stream messages from topic on sub.
func SetEventSource(sub message.Subscriber, topic string) {
	eventSub = sub
	eventTopic = topic
}
