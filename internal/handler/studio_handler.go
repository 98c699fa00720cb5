package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/notebase-ai/notebase/internal/jobs"
	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/pkg/errcode"
	"github.com/notebase-ai/notebase/internal/pkg/response"
	"github.com/notebase-ai/notebase/internal/service"
)

type StudioHandler struct {
	notebooks *service.NotebookService
	studio    *service.StudioService
	hub       *jobs.Hub
}

func NewStudioHandler(notebooks *service.NotebookService, studio *service.StudioService, hub *jobs.Hub) *StudioHandler {
	return &StudioHandler{notebooks: notebooks, studio: studio, hub: hub}
}

func (h *StudioHandler) resolve(c *gin.Context) (*model.GenerationJob, bool) {
	job, err := h.studio.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return nil, false
	}
	if err := h.notebooks.CheckOwnership(c.Request.Context(), getUserID(c), job.NotebookID); err != nil {
		handleError(c, err)
		return nil, false
	}
	return job, true
}

type submitJobRequest struct {
	ArtifactType string          `json:"artifact_type"`
	Params       model.JobParams `json:"params"`
}

// Submit is idempotent: resubmitting the same params while a job for them is
// still in flight returns that job instead of queueing a twin.
func (h *StudioHandler) Submit(c *gin.Context) {
	notebookID := c.Param("id")
	if err := h.notebooks.CheckOwnership(c.Request.Context(), getUserID(c), notebookID); err != nil {
		handleError(c, err)
		return
	}
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	job, created, err := h.studio.Submit(c.Request.Context(), notebookID, model.ArtifactType(req.ArtifactType), req.Params)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"job": job, "created": created})
}

func (h *StudioHandler) List(c *gin.Context) {
	notebookID := c.Param("id")
	if err := h.notebooks.CheckOwnership(c.Request.Context(), getUserID(c), notebookID); err != nil {
		handleError(c, err)
		return
	}
	jobList, err := h.studio.List(c.Request.Context(), notebookID,
		c.Query("artifact_type"), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, jobList)
}

func (h *StudioHandler) Get(c *gin.Context) {
	job, ok := h.resolve(c)
	if !ok {
		return
	}
	response.Success(c, job)
}

func (h *StudioHandler) Cancel(c *gin.Context) {
	job, ok := h.resolve(c)
	if !ok {
		return
	}
	cancelled, err := h.studio.Cancel(c.Request.Context(), job.NotebookID, job.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cancelled)
}

func (h *StudioHandler) Export(c *gin.Context) {
	job, ok := h.resolve(c)
	if !ok {
		return
	}
	baseURL := "http://" + c.Request.Host
	if c.Request.TLS != nil {
		baseURL = "https://" + c.Request.Host
	}
	url, err := h.studio.Export(c.Request.Context(), job.NotebookID, job.ID, baseURL)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"url": url})
}

// Events pushes job status changes as server-sent events. The current state
// is sent first so clients need no separate poll; the stream closes once the
// job reaches a terminal state.
func (h *StudioHandler) Events(c *gin.Context) {
	job, ok := h.resolve(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)

	// Subscribe before the snapshot so a transition between the two is not
	// lost. Duplicate events are harmless.
	events, unsubscribe := h.hub.Subscribe(job.NotebookID)
	defer unsubscribe()

	writeSSE(c, flusher, "status", jobs.Event{
		JobID: job.ID, NotebookID: job.NotebookID, ArtifactType: job.ArtifactType,
		Status: job.Status, Error: job.Error, Result: job.Result,
	})
	if model.JobStatusTerminal(job.Status) {
		return
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			writeSSEComment(c, flusher)
		case ev := <-events:
			if ev.JobID != job.ID {
				continue
			}
			writeSSE(c, flusher, "status", ev)
			if model.JobStatusTerminal(ev.Status) {
				return
			}
		}
	}
}

func writeSSEComment(c *gin.Context, flusher http.Flusher) {
	c.Writer.WriteString(": ping\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}
