// statusupdate.go - Owner-driven status transitions.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type statusUpdateReq struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// statusUpdateHandler handles POST /status/update/{fileID}. Owner only;
// the requested status runs through the state machine and an illegal
// transition fails without mutating anything. Requesting the current
// status is an idempotent no-op.
func (s *Server) statusUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req statusUpdateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, s.log, ValidationError{Msg: "bad request"})
			return
		}
		requested, err := ParseStatus(req.Status)
		if err != nil {
			writeError(w, s.log, err)
			return
		}

		change, err := s.life.UpdateStatus(r.Context(), caller, chi.URLParam(r, "fileID"), requested, req.RejectionReason)
		if err != nil {
			writeError(w, s.log, err)
			return
		}

		if !change.Changed {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"message": "Status unchanged",
				"status":  change.NewStatus,
			})
			return
		}

		rec := change.Record
		writeJSON(w, http.StatusOK, map[string]any{
			"success":           true,
			"file_id":           rec.ID,
			"file_name":         rec.FileName,
			"old_status":        change.OldStatus,
			"new_status":        change.NewStatus,
			"status_updated_at": rec.StatusUpdatedAt.Format(time.RFC3339),
			"rejection_reason":  rec.RejectionReason,
			"message":           "Status updated to " + string(change.NewStatus),
		})
	}
}
