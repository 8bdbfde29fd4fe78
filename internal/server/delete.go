// delete.go - Soft delete, deletion history and history purge endpoints.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// deleteHandler handles POST /delete/{fileID}. Either the uploader or the
// owner of the file may remove it from active view; the record settles
// into a terminal status per the deletion policy.
func (s *Server) deleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rec, err := s.life.Delete(r.Context(), caller, chi.URLParam(r, "fileID"))
		if err != nil {
			writeError(w, s.log, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"file_id":    rec.ID,
			"file_name":  rec.FileName,
			"status":     rec.Status,
			"deleted_at": rec.DeletedAt.Format(time.RFC3339),
			"message":    "File deleted successfully",
		})
	}
}

// historyEntry is one row in the owner's deletion history.
type historyEntry struct {
	FileID          string  `json:"file_id"`
	FileName        string  `json:"file_name"`
	FileSizeBytes   int64   `json:"file_size_bytes"`
	UploadedAt      string  `json:"uploaded_at"`
	DeletedAt       *string `json:"deleted_at"`
	Status          Status  `json:"status"`
	StatusUpdatedAt string  `json:"status_updated_at"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	IsPrinted       bool    `json:"is_printed"`
}

// historyHandler handles GET /history: the owner's soft-deleted records,
// most recently deleted first.
func (s *Server) historyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		recs, err := s.life.History(r.Context(), caller)
		if err != nil {
			writeError(w, s.log, err)
			return
		}

		history := make([]historyEntry, 0, len(recs))
		for _, rec := range recs {
			history = append(history, historyEntry{
				FileID:          rec.ID,
				FileName:        rec.FileName,
				FileSizeBytes:   rec.SizeBytes,
				UploadedAt:      rec.CreatedAt.Format(time.RFC3339),
				DeletedAt:       formatOptTime(rec.DeletedAt),
				Status:          rec.Status,
				StatusUpdatedAt: rec.StatusUpdatedAt.Format(time.RFC3339),
				RejectionReason: rec.RejectionReason,
				IsPrinted:       rec.IsPrinted,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"count":   len(history),
			"history": history,
		})
	}
}

// clearHistoryHandler handles POST /clear-history: permanent removal of
// every soft-deleted record for the owner. Irreversible.
func (s *Server) clearHistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		count, err := s.life.PurgeHistory(r.Context(), caller)
		if err != nil {
			writeError(w, s.log, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"deleted_count": count,
		})
	}
}
