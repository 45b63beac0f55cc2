package types

// CompletionRequest is the body of POST /request.
type CompletionRequest struct {
	// Required prompt text; appended to the conversation as a user turn.
	// example: What is the capital of France?
	Prompt string `json:"prompt" example:"What is the capital of France?"`
}

// CompletionResponse is returned by POST /request.
type CompletionResponse struct {
	// Trimmed assistant reply.
	// example: Paris.
	Text string `json:"text" example:"Paris."`
}

// InferRequest is the body of POST /infer. Unset fields fall back to the
// server's configured defaults.
type InferRequest struct {
	// Required prompt text.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float32 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float32 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Optional stop sequences; the matched text is not emitted.
	// example: ["\n\n","END"]
	Stop []string `json:"stop,omitempty" example:"[\"\\n\\n\",\"END\"]"`
	// Random seed for reproducibility; 0 or omitted lets the engine choose.
	// example: 42
	Seed int `json:"seed,omitempty" example:"42"`
	// Repeat penalty.
	// example: 1.1
	RepeatPenalty float32 `json:"repeat_penalty,omitempty" example:"1.1"`
}

// InferLine is one NDJSON line streamed by POST /infer. Token lines carry
// Token; the final line has Done set and the summary fields.
type InferLine struct {
	Token        string `json:"token,omitempty"`
	Done         bool   `json:"done,omitempty"`
	Content      string `json:"content,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Fragments    int    `json:"fragments,omitempty"`
	Dropped      int    `json:"dropped_messages,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// SMSMessage is the body of POST /api/sms and POST /api/sms/receive.
type SMSMessage struct {
	// example: +15551234567
	PhoneNumber string `json:"phoneNumber" example:"+15551234567"`
	// example: Are you open today?
	Message string `json:"message" example:"Are you open today?"`
	// Optional provider message id; repeats within the dedupe window are
	// answered from cache.
	// example: SM123
	MessageID string `json:"messageId,omitempty" example:"SM123"`
}

// SMSSendResponse is returned by POST /api/sms.
type SMSSendResponse struct {
	// example: Success
	Status string `json:"status" example:"Success"`
	// example: SMS sent successfully.
	Message string `json:"message" example:"SMS sent successfully."`
}

// SMSReceiveResponse is returned by POST /api/sms/receive.
type SMSReceiveResponse struct {
	// example: true
	Success bool `json:"success" example:"true"`
	// example: SMS processed successfully
	Message string `json:"message" example:"SMS processed successfully"`
	// Assistant reply; omitted on failure.
	// example: Yes, until 6pm.
	Response string `json:"response,omitempty" example:"Yes, until 6pm."`
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// example: TinyLlama.Q4_K_M
	Name string `json:"name" example:"TinyLlama.Q4_K_M"`
	// example: 2048
	ContextSize int `json:"context_size" example:"2048"`
	// example: 0
	GPULayers int `json:"gpu_layers" example:"0"`
	// example: true
	Loaded bool `json:"loaded" example:"true"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// example: 3b5d8c1e-8a4e-4c0a-9b1f-2f6f1f0f7c11
	SessionID string `json:"session_id" example:"3b5d8c1e-8a4e-4c0a-9b1f-2f6f1f0f7c11"`
	// Session state: idle, generating or closed.
	// example: idle
	State string    `json:"state" example:"idle"`
	Model ModelInfo `json:"model"`
	// example: true
	ConversationMode bool `json:"conversation_mode" example:"true"`
	// Messages currently held in the conversation history.
	// example: 4
	HistoryLen int `json:"history_len" example:"4"`
	// Calls admitted (waiting or running).
	// example: 1
	QueueLen int `json:"queue_len" example:"1"`
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum calls allowed to wait before backpressure triggers.
	// example: 8
	MaxQueueDepth int `json:"max_queue_depth" example:"8"`
	// example: 12
	CompletionsTotal uint64 `json:"completions_total" example:"12"`
	// example: 1
	FailuresTotal uint64 `json:"failures_total" example:"1"`
	// example: 0
	BusyTotal uint64 `json:"busy_total" example:"0"`
	// Last error observed by the session (if any).
	LastError string `json:"last_error,omitempty"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
