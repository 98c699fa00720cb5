package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/pkg/errcode"
	"github.com/notebase-ai/notebase/internal/pkg/response"
	"github.com/notebase-ai/notebase/internal/service"
)

type SourceHandler struct {
	notebooks *service.NotebookService
	sources   *service.SourceService
}

func NewSourceHandler(notebooks *service.NotebookService, sources *service.SourceService) *SourceHandler {
	return &SourceHandler{notebooks: notebooks, sources: sources}
}

// resolve maps a bare source id to its owning notebook after the ownership
// check passed.
func (h *SourceHandler) resolve(c *gin.Context) (*model.Source, bool) {
	src, err := h.sources.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return nil, false
	}
	if err := h.notebooks.CheckOwnership(c.Request.Context(), getUserID(c), src.NotebookID); err != nil {
		handleError(c, err)
		return nil, false
	}
	return src, true
}

type addSourceRequest struct {
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	RawText string `json:"raw_text"`
	URL     string `json:"url"`
}

func (h *SourceHandler) Add(c *gin.Context) {
	notebookID := c.Param("id")
	if err := h.notebooks.CheckOwnership(c.Request.Context(), getUserID(c), notebookID); err != nil {
		handleError(c, err)
		return
	}
	var req addSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	src, err := h.sources.Add(c.Request.Context(), notebookID, service.AddSourceRequest{
		Title:   req.Title,
		Kind:    model.SourceKind(req.Kind),
		RawText: req.RawText,
		URL:     req.URL,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) List(c *gin.Context) {
	notebookID := c.Param("id")
	if err := h.notebooks.CheckOwnership(c.Request.Context(), getUserID(c), notebookID); err != nil {
		handleError(c, err)
		return
	}
	sources, err := h.sources.List(c.Request.Context(), notebookID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sources)
}

func (h *SourceHandler) Get(c *gin.Context) {
	src, ok := h.resolve(c)
	if !ok {
		return
	}
	response.Success(c, src)
}

type updateSourceRequest struct {
	Title    *string `json:"title"`
	IsActive *bool   `json:"is_active"`
}

func (h *SourceHandler) Update(c *gin.Context) {
	src, ok := h.resolve(c)
	if !ok {
		return
	}
	var req updateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	updated, err := h.sources.Update(c.Request.Context(), src.NotebookID, src.ID, req.Title, req.IsActive)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, updated)
}

type toggleActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// SetActive toggles retrieval scope membership without touching the indexed
// chunks.
func (h *SourceHandler) SetActive(c *gin.Context) {
	src, ok := h.resolve(c)
	if !ok {
		return
	}
	var req toggleActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	updated, err := h.sources.Update(c.Request.Context(), src.NotebookID, src.ID, nil, &req.IsActive)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, updated)
}

type reingestRequest struct {
	RawText string `json:"raw_text"`
}

func (h *SourceHandler) Reingest(c *gin.Context) {
	src, ok := h.resolve(c)
	if !ok {
		return
	}
	var req reingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	updated, err := h.sources.Reingest(c.Request.Context(), src.NotebookID, src.ID, req.RawText)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, updated)
}

func (h *SourceHandler) Delete(c *gin.Context) {
	src, ok := h.resolve(c)
	if !ok {
		return
	}
	if err := h.sources.Delete(c.Request.Context(), src.NotebookID, src.ID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
