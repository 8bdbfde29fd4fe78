// files.go - Listing, download-for-print and status snapshot endpoints.
package server

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// fileSummary is one row in the /files listing.
type fileSummary struct {
	FileID          string  `json:"file_id"`
	FileName        string  `json:"file_name"`
	FileSizeBytes   int64   `json:"file_size_bytes"`
	UploadedAt      string  `json:"uploaded_at"`
	IsPrinted       bool    `json:"is_printed"`
	PrintedAt       *string `json:"printed_at"`
	Status          Status  `json:"status"`
	StatusUpdatedAt string  `json:"status_updated_at"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	SenderPhone     string  `json:"sender_phone,omitempty"`
}

// maskPhone hides all but the last four digits. Numbers too short to mask
// pass through unchanged.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range masked {
		masked[i] = 'x'
	}
	copy(masked[len(phone)-4:], phone[len(phone)-4:])
	return string(masked)
}

func formatOptTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func summarize(rec *FileRecord) fileSummary {
	return fileSummary{
		FileID:          rec.ID,
		FileName:        rec.FileName,
		FileSizeBytes:   rec.SizeBytes,
		UploadedAt:      rec.CreatedAt.Format(time.RFC3339),
		IsPrinted:       rec.IsPrinted,
		PrintedAt:       formatOptTime(rec.PrintedAt),
		Status:          rec.Status,
		StatusUpdatedAt: rec.StatusUpdatedAt.Format(time.RFC3339),
		RejectionReason: rec.RejectionReason,
		SenderPhone:     maskPhone(rec.SenderPhone),
	}
}

// listFilesHandler handles GET /files: the caller's active view, most
// recent first, bounded page.
func (s *Server) listFilesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		recs, err := s.life.List(r.Context(), caller)
		if err != nil {
			writeError(w, s.log, err)
			return
		}

		files := make([]fileSummary, 0, len(recs))
		for _, rec := range recs {
			files = append(files, summarize(rec))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"count":   len(files),
			"files":   files,
		})
	}
}

// printHandler handles GET /print/{fileID}: owner-only full record with
// the payload and its companions base64-encoded for the JSON body.
func (s *Server) printHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rec, payload, err := s.life.FetchForPrint(r.Context(), caller, chi.URLParam(r, "fileID"))
		if err != nil {
			writeError(w, s.log, err)
			return
		}

		b64 := base64.StdEncoding.EncodeToString
		writeJSON(w, http.StatusOK, map[string]any{
			"success":                 true,
			"file_id":                 rec.ID,
			"file_name":               rec.FileName,
			"encrypted_file_data":     b64(payload),
			"file_size_bytes":         rec.SizeBytes,
			"iv_vector":               b64(rec.IVVector),
			"auth_tag":                b64(rec.AuthTag),
			"encrypted_symmetric_key": b64(rec.EncryptedKey),
			"uploaded_at":             rec.CreatedAt.Format(time.RFC3339),
			"is_printed":              rec.IsPrinted,
			"message":                 "Decrypt this file on your PC before printing",
		})
	}
}

// statusSnapshotHandler handles GET /status/history/{fileID}: the current
// status view of one file, scoped to its uploader or owner.
func (s *Server) statusSnapshotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rec, err := s.life.StatusSnapshot(r.Context(), caller, chi.URLParam(r, "fileID"))
		if err != nil {
			writeError(w, s.log, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":           true,
			"file_id":           rec.ID,
			"file_name":         rec.FileName,
			"status":            rec.Status,
			"status_updated_at": rec.StatusUpdatedAt.Format(time.RFC3339),
			"rejection_reason":  rec.RejectionReason,
			"uploaded_at":       rec.CreatedAt.Format(time.RFC3339),
		})
	}
}
