package api

// GenerateRequest is the body of POST /v1/generate. Pointer fields
// distinguish "not set" from zero so server defaults can apply.
type GenerateRequest struct {
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens"`
	Seed          int64    `json:"seed"`
	Temperature   *float64 `json:"temperature"`
	TopK          *int     `json:"top_k"`
	TopP          *float64 `json:"top_p"`
	RepeatPenalty *float64 `json:"repeat_penalty"`
	Stream        bool     `json:"stream"`
}

// GenerateResponse describes a finished generation. Stored generations
// are returned verbatim by GET /v1/generations/:id.
type GenerateResponse struct {
	ID              string  `json:"id"`
	Object          string  `json:"object"`
	CreatedAt       int64   `json:"created_at"`
	Text            string  `json:"text"`
	StopReason      string  `json:"stop_reason"`
	PromptTokens    int     `json:"prompt_tokens"`
	TokensGenerated int     `json:"tokens_generated"`
	DurationMs      int64   `json:"duration_ms"`
	TPS             float64 `json:"tokens_per_second"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type streamEvent struct {
	Type           string            `json:"type"`
	Delta          string            `json:"delta,omitempty"`
	Response       *GenerateResponse `json:"response,omitempty"`
	Error          string            `json:"error,omitempty"`
	SequenceNumber int               `json:"sequence_number"`
}
