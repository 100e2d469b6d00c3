// Package handler exposes the HTTP surface of the engine.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/anvie-labs/chat-orchestrator/internal/fault"
	"github.com/anvie-labs/chat-orchestrator/internal/middleware"
	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/internal/orchestrator"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

// sseDoneSentinel terminates a streamed reply.
const sseDoneSentinel = "[DONE]"

// ChatHandler handles the turn-processing endpoints.
type ChatHandler struct {
	engine *orchestrator.Engine
	logger *logger.Logger
}

// NewChatHandler creates a chat handler over the engine.
func NewChatHandler(engine *orchestrator.Engine, log *logger.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, logger: log}
}

// Chat handles POST /api/v1/chat
//
// The envelope always carries a customer-facing reply; infrastructure
// failures surface as status "error" with an apologetic reply rather
// than an empty 5xx.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	turn, err := h.engine.HandleTurn(r.Context(), req.ChatID, req.UserInput)
	if err != nil {
		h.logger.Error("turn failed",
			zap.String("chat_id", req.ChatID),
			zap.String("kind", string(fault.KindOf(err))),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, model.ChatResponse{
			Status: model.ChatStatusError,
			Reply:  turn.Reply,
		})
		return
	}

	writeJSON(w, http.StatusOK, model.ChatResponse{
		Status: model.ChatStatusOK,
		Reply:  turn.Reply,
	})
}

// ChatStream handles POST /api/v1/chat/stream
//
// The reply is delivered as SSE data chunks, one per line of the
// rendered reply, terminated by the [DONE] sentinel.
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	flusher, okFlush := w.(http.Flusher)
	if !okFlush {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for chunk := range h.engine.HandleTurnStream(r.Context(), req.ChatID, req.UserInput) {
		if chunk.Err != nil {
			h.logger.Error("turn failed",
				zap.String("chat_id", req.ChatID),
				zap.String("kind", string(fault.KindOf(chunk.Err))),
				zap.Error(chunk.Err),
			)
		}
		if chunk.Done {
			fmt.Fprintf(w, "data: %s\n\n", sseDoneSentinel)
			flusher.Flush()
			return
		}
		if chunk.Text == "" {
			continue
		}
		if err := sendSSEChunk(w, flusher, chunk.Text); err != nil {
			return
		}
	}
}

func (h *ChatHandler) decode(w http.ResponseWriter, r *http.Request) (*model.ChatRequest, bool) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if err := middleware.ValidateChatID(req.ChatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err := middleware.ValidateUserInput(req.UserInput); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

func sendSSEChunk(w http.ResponseWriter, flusher http.Flusher, chunk string) error {
	data, err := json.Marshal(map[string]string{"reply": chunk})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
