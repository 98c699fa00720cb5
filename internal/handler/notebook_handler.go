package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/notebase-ai/notebase/internal/pkg/errcode"
	"github.com/notebase-ai/notebase/internal/pkg/response"
	"github.com/notebase-ai/notebase/internal/service"
)

type NotebookHandler struct {
	notebooks *service.NotebookService
}

func NewNotebookHandler(notebooks *service.NotebookService) *NotebookHandler {
	return &NotebookHandler{notebooks: notebooks}
}

type notebookRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *NotebookHandler) Create(c *gin.Context) {
	var req notebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	notebook, err := h.notebooks.Create(c.Request.Context(), getUserID(c), req.Title, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, notebook)
}

func (h *NotebookHandler) List(c *gin.Context) {
	limit := uint(queryInt(c, "limit", 0))
	offset := uint(queryInt(c, "offset", 0))
	notebooks, err := h.notebooks.List(c.Request.Context(), getUserID(c), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, notebooks)
}

func (h *NotebookHandler) Get(c *gin.Context) {
	notebook, err := h.notebooks.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, notebook)
}

func (h *NotebookHandler) Update(c *gin.Context) {
	var req notebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	notebook, err := h.notebooks.Update(c.Request.Context(), getUserID(c), c.Param("id"), req.Title, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, notebook)
}

func (h *NotebookHandler) Delete(c *gin.Context) {
	if err := h.notebooks.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
