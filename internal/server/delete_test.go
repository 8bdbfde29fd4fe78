package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteHandler(t *testing.T) {
	env := newTestEnv(t)
	id := seedViaHandler(t, env)
	ownerToken := mintToken(t, "owner-1", RoleOwner, "")

	rr := authedPost(t, env, "/delete/"+id, ownerToken, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, string(StatusCancelled), resp["status"], "pending file settles into CANCELLED")
	assert.NotEmpty(t, resp["deleted_at"])

	// Second delete is a 400.
	rr = authedPost(t, env, "/delete/"+id, ownerToken, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "already deleted")
}

func TestDeleteHandlerForbiddenForStranger(t *testing.T) {
	env := newTestEnv(t)
	id := seedViaHandler(t, env)

	strangerToken := mintToken(t, "uploader-2", RoleUploader, "")
	rr := authedPost(t, env, "/delete/"+id, strangerToken, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHistoryHandlers(t *testing.T) {
	env := newTestEnv(t)
	id := seedViaHandler(t, env)
	ownerToken := mintToken(t, "owner-1", RoleOwner, "")

	// Nothing deleted yet.
	rr := authedGet(t, env, "/history", ownerToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var listResp struct {
		Success bool           `json:"success"`
		Count   int            `json:"count"`
		History []historyEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listResp))
	assert.Equal(t, 0, listResp.Count)

	rr = authedPost(t, env, "/delete/"+id, ownerToken, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = authedGet(t, env, "/history", ownerToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listResp))
	require.Equal(t, 1, listResp.Count)
	assert.Equal(t, id, listResp.History[0].FileID)
	assert.NotNil(t, listResp.History[0].DeletedAt)

	// History is owner-only.
	uploaderToken := mintToken(t, "uploader-1", RoleUploader, "")
	rr = authedGet(t, env, "/history", uploaderToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Clearing removes the rows and their payloads.
	rr = authedPost(t, env, "/clear-history", ownerToken, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var clearResp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &clearResp))
	assert.Equal(t, float64(1), clearResp["deleted_count"])
	assert.False(t, env.blobs.has("uploads/"+id))

	rr = authedGet(t, env, "/history", ownerToken)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listResp))
	assert.Equal(t, 0, listResp.Count)
}
