package model

// ChatRequest is the turn-processing request body.
type ChatRequest struct {
	ChatID    string `json:"chat_id"`
	UserInput string `json:"user_input"`
}

// ChatStatus is the envelope status of a chat response.
type ChatStatus string

const (
	ChatStatusOK    ChatStatus = "ok"
	ChatStatusError ChatStatus = "error"
)

// ChatResponse is the single-envelope turn response.
type ChatResponse struct {
	Status ChatStatus `json:"status"`
	Reply  string     `json:"reply"`
}

// ErrorResponse is the envelope for request-level failures, before a
// turn ever runs (bad body, failed validation).
type ErrorResponse struct {
	Error string `json:"error"`
}
