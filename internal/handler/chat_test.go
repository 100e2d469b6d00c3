package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvie-labs/chat-orchestrator/internal/model"
	"github.com/anvie-labs/chat-orchestrator/pkg/logger"
)

func TestChatRejectsMalformedBody(t *testing.T) {
	h := NewChatHandler(nil, logger.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body model.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "invalid request body", body.Error)
}

func TestChatRejectsMissingChatID(t *testing.T) {
	h := NewChatHandler(nil, logger.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"user_input":"xin chào"}`))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body model.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotEmpty(t, body.Error)
}
