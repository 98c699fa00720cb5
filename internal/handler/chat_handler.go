package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notebase-ai/notebase/internal/pkg/errcode"
	"github.com/notebase-ai/notebase/internal/pkg/response"
	"github.com/notebase-ai/notebase/internal/service"
)

type ChatHandler struct {
	notebooks *service.NotebookService
	chat      *service.ChatService
}

func NewChatHandler(notebooks *service.NotebookService, chat *service.ChatService) *ChatHandler {
	return &ChatHandler{notebooks: notebooks, chat: chat}
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	notebookID := c.Param("id")
	userID := getUserID(c)
	if err := h.notebooks.CheckOwnership(c.Request.Context(), userID, notebookID); err != nil {
		handleError(c, err)
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	session, err := h.chat.CreateSession(c.Request.Context(), userID, notebookID, req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	notebookID := c.Param("id")
	userID := getUserID(c)
	if err := h.notebooks.CheckOwnership(c.Request.Context(), userID, notebookID); err != nil {
		handleError(c, err)
		return
	}
	sessions, err := h.chat.ListSessions(c.Request.Context(), userID, notebookID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sessions)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.chat.DeleteSession(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	messages, err := h.chat.ListMessages(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, messages)
}

type askRequest struct {
	Question     string   `json:"question"`
	SourceIDs    []string `json:"source_ids"`
	Style        string   `json:"style"`
	CustomPrompt string   `json:"custom_prompt"`
	TopK         int      `json:"top_k"`
}

// Ask streams the answer as server-sent events: one `delta` event per token
// batch, then a `message` event carrying the persisted assistant turn with
// its citations. Failures after the first delta still emit the message event
// (interrupted flag set) followed by an `error` event.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)

	assistant, err := h.chat.Ask(c.Request.Context(), service.AskRequest{
		UserID:       getUserID(c),
		SessionID:    c.Param("id"),
		Question:     req.Question,
		SourceIDs:    req.SourceIDs,
		Style:        req.Style,
		CustomPrompt: req.CustomPrompt,
		TopK:         req.TopK,
	}, func(delta string) error {
		writeSSE(c, flusher, "delta", gin.H{"text": delta})
		return nil
	})
	if assistant != nil {
		writeSSE(c, flusher, "message", assistant)
	}
	if err != nil {
		code, message := mapErrCode(err)
		writeSSE(c, flusher, "error", gin.H{"code": code, "message": message})
	}
}

func writeSSE(c *gin.Context, flusher http.Flusher, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	if flusher != nil {
		flusher.Flush()
	}
}
