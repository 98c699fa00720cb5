package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/notebase-ai/notebase/internal/model"
	"github.com/notebase-ai/notebase/internal/pkg/errcode"
)

type submitResponse struct {
	Job     model.GenerationJob `json:"job"`
	Created bool                `json:"created"`
}

func TestStudioSubmitIsIdempotent(t *testing.T) {
	router, _ := setupRouter(t)
	token := authToken(t, "user-"+uuid.NewString()[:8])

	resp := doJSON(t, router, http.MethodPost, "/api/v1/notebooks", token, map[string]string{"title": "nb"})
	var nb model.Notebook
	decodeData(t, resp, &nb)

	body := map[string]interface{}{
		"artifact_type": "mindmap",
		"params":        map[string]interface{}{"topic": "testing"},
	}
	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/notebooks/%s/studio/jobs", nb.ID), token, body)
	var first submitResponse
	decodeData(t, resp, &first)
	require.True(t, first.Created)
	require.Equal(t, model.JobStatusPending, first.Job.Status)

	// same params while in flight return the live job
	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/notebooks/%s/studio/jobs", nb.ID), token, body)
	var second submitResponse
	decodeData(t, resp, &second)
	require.False(t, second.Created)
	require.Equal(t, first.Job.ID, second.Job.ID)

	// different params queue a distinct job
	body["params"] = map[string]interface{}{"topic": "deployment"}
	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/notebooks/%s/studio/jobs", nb.ID), token, body)
	var third submitResponse
	decodeData(t, resp, &third)
	require.True(t, third.Created)
	require.NotEqual(t, first.Job.ID, third.Job.ID)

	resp = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/notebooks/%s/studio/jobs", nb.ID), token, nil)
	var jobList []model.GenerationJob
	decodeData(t, resp, &jobList)
	require.Len(t, jobList, 2)
}

func TestStudioCancelPendingJob(t *testing.T) {
	router, _ := setupRouter(t)
	token := authToken(t, "user-"+uuid.NewString()[:8])

	resp := doJSON(t, router, http.MethodPost, "/api/v1/notebooks", token, map[string]string{"title": "nb"})
	var nb model.Notebook
	decodeData(t, resp, &nb)

	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/notebooks/%s/studio/jobs", nb.ID), token,
		map[string]interface{}{"artifact_type": "slide_deck", "params": map[string]interface{}{}})
	var submitted submitResponse
	decodeData(t, resp, &submitted)

	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/studio/jobs/%s/cancel", submitted.Job.ID), token, nil)
	var cancelled model.GenerationJob
	decodeData(t, resp, &cancelled)
	require.Equal(t, model.JobStatusError, cancelled.Status)

	// cancelling again hits the terminal guard
	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/studio/jobs/%s/cancel", submitted.Job.ID), token, nil)
	require.EqualValues(t, errcode.ErrJobTerminal, decodeCode(t, resp))

	// a job from another user's notebook is invisible
	otherToken := authToken(t, "user-"+uuid.NewString()[:8])
	resp = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/studio/jobs/%s", submitted.Job.ID), otherToken, nil)
	require.EqualValues(t, errcode.ErrNotFound, decodeCode(t, resp))
}

func TestStudioSubmitRejectsUnknownArtifact(t *testing.T) {
	router, _ := setupRouter(t)
	token := authToken(t, "user-"+uuid.NewString()[:8])

	resp := doJSON(t, router, http.MethodPost, "/api/v1/notebooks", token, map[string]string{"title": "nb"})
	var nb model.Notebook
	decodeData(t, resp, &nb)

	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/notebooks/%s/studio/jobs", nb.ID), token,
		map[string]interface{}{"artifact_type": "hologram", "params": map[string]interface{}{}})
	require.EqualValues(t, errcode.ErrInvalid, decodeCode(t, resp))
}
