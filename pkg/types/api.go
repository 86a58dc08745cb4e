package types

// ChatRequest is the payload accepted by POST /chat.
type ChatRequest struct {
	// New user message. Required.
	// example: I can't sleep
	Message *string `json:"message" example:"I can't sleep"`
	// Full prior conversation as held by the client. Any system message is replaced.
	History []Message `json:"history,omitempty"`
}

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	// Generated assistant reply.
	// example: Try keeping a consistent bedtime.
	Response string `json:"response" example:"Try keeping a consistent bedtime."`
	// Full history including the persona, the new user turn and the reply.
	History []Message `json:"history"`
	// Total tokens reported by the engine, when available.
	// example: 412
	TokensUsed *int `json:"tokens_used,omitempty" example:"412"`
}

// ResetResponse is returned by POST /reset.
type ResetResponse struct {
	// example: Conversation reset
	Message string    `json:"message" example:"Conversation reset"`
	History []Message `json:"history"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Whether the text model finished loading.
	// example: true
	TextModelLoaded bool `json:"text_model_loaded" example:"true"`
	// Server time in unix seconds with fractional part.
	// example: 1700000000.123
	Timestamp float64 `json:"timestamp" example:"1700000000.123"`
}

// ImageResponse is the placeholder returned by POST /process_image.
type ImageResponse struct {
	// example: Image processing not implemented
	Message     string `json:"message" example:"Image processing not implemented"`
	Implemented bool   `json:"implemented" example:"false"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: Missing 'message' field
	Error string `json:"error" example:"Missing 'message' field"`
}
