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

func TestNotebookHandlersRequireAuth(t *testing.T) {
	router, _ := setupRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/notebooks", "", map[string]string{"title": "x"})
	require.Equal(t, http.StatusOK, resp.Code)
	require.EqualValues(t, errcode.ErrUnauthorized, decodeCode(t, resp))

	// stored artifact documents are guarded too
	resp = doJSON(t, router, http.MethodGet, "/api/v1/files/artifacts/nb/job.md", "", nil)
	require.EqualValues(t, errcode.ErrUnauthorized, decodeCode(t, resp))
}

func TestNotebookCRUDOverHTTP(t *testing.T) {
	router, _ := setupRouter(t)
	token := authToken(t, "user-"+uuid.NewString()[:8])

	resp := doJSON(t, router, http.MethodPost, "/api/v1/notebooks", token,
		map[string]string{"title": "research", "description": "notes"})
	var created model.Notebook
	decodeData(t, resp, &created)
	require.Equal(t, "research", created.Title)
	require.NotEmpty(t, created.ID)

	resp = doJSON(t, router, http.MethodGet, "/api/v1/notebooks", token, nil)
	var listed []model.Notebook
	decodeData(t, resp, &listed)
	require.Len(t, listed, 1)

	resp = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/v1/notebooks/%s", created.ID), token,
		map[string]string{"title": "renamed"})
	var updated model.Notebook
	decodeData(t, resp, &updated)
	require.Equal(t, "renamed", updated.Title)

	// other users never see the notebook
	otherToken := authToken(t, "user-"+uuid.NewString()[:8])
	resp = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/notebooks/%s", created.ID), otherToken, nil)
	require.EqualValues(t, errcode.ErrNotFound, decodeCode(t, resp))

	resp = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/notebooks/%s", created.ID), token, nil)
	decodeData(t, resp, nil)

	resp = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/notebooks/%s", created.ID), token, nil)
	require.EqualValues(t, errcode.ErrNotFound, decodeCode(t, resp))
}

func TestSourceLifecycleOverHTTP(t *testing.T) {
	router, _ := setupRouter(t)
	token := authToken(t, "user-"+uuid.NewString()[:8])

	resp := doJSON(t, router, http.MethodPost, "/api/v1/notebooks", token, map[string]string{"title": "nb"})
	var nb model.Notebook
	decodeData(t, resp, &nb)

	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/notebooks/%s/sources", nb.ID), token,
		map[string]string{"title": "readme", "kind": "markdown", "raw_text": "# Hello\n\nSome text."})
	var src model.Source
	decodeData(t, resp, &src)
	require.Equal(t, model.SourceKindMarkdown, src.Kind)
	require.True(t, src.IsActive)

	// unknown kind is rejected
	resp = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/notebooks/%s/sources", nb.ID), token,
		map[string]string{"title": "x", "kind": "floppy", "raw_text": "y"})
	require.EqualValues(t, errcode.ErrInvalid, decodeCode(t, resp))

	resp = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/v1/sources/%s/active", src.ID), token,
		map[string]bool{"is_active": false})
	var toggled model.Source
	decodeData(t, resp, &toggled)
	require.False(t, toggled.IsActive)

	resp = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/sources/%s", src.ID), token, nil)
	decodeData(t, resp, nil)

	resp = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/sources/%s", src.ID), token, nil)
	require.EqualValues(t, errcode.ErrNotFound, decodeCode(t, resp))
}
