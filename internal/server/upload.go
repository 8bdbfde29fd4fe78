// upload.go - Multipart upload intake.
package server

import (
	"encoding/base64"
	"io"
	"net/http"
	"time"
)

// uploadResp is the JSON body returned after a successful upload.
type uploadResp struct {
	Success         bool   `json:"success"`
	FileID          string `json:"file_id"`
	FileName        string `json:"file_name"`
	FileSizeBytes   int64  `json:"file_size_bytes"`
	UploadedAt      string `json:"uploaded_at"`
	Status          Status `json:"status"`
	StatusUpdatedAt string `json:"status_updated_at"`
	Message         string `json:"message"`
}

// uploadHandler handles POST /upload. The multipart form carries the
// encrypted file under "file" plus base64 fields iv_vector, auth_tag and
// encrypted_symmetric_key, the display file_name and the owner_id
// reference. Responds 201 with the created record, 400 on validation
// failure, 413 over the size cap.
func (s *Server) uploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// The cap applies to the payload; leave headroom for the form
		// framing and the small base64 fields.
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)

		mr, err := r.MultipartReader()
		if err != nil {
			writeError(w, s.log, ValidationError{Msg: "bad multipart"})
			return
		}

		var in UploadInput
		fields := map[string]string{}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				if _, ok := err.(*http.MaxBytesError); ok {
					writeError(w, s.log, ErrTooLarge)
					return
				}
				writeError(w, s.log, ValidationError{Msg: "bad multipart"})
				return
			}

			name := part.FormName()
			if name == "file" {
				in.MimeType = part.Header.Get("Content-Type")
				data, err := io.ReadAll(part)
				_ = part.Close()
				if err != nil {
					if _, ok := err.(*http.MaxBytesError); ok {
						writeError(w, s.log, ErrTooLarge)
						return
					}
					writeError(w, s.log, ValidationError{Msg: "bad multipart"})
					return
				}
				in.Payload = data
				continue
			}

			val, err := io.ReadAll(part)
			_ = part.Close()
			if err != nil {
				writeError(w, s.log, ValidationError{Msg: "bad multipart"})
				return
			}
			fields[name] = string(val)
		}

		in.FileName = fields["file_name"]
		in.OwnerRef = fields["owner_id"]

		// The three companions arrive base64-encoded; reject anything
		// that does not decode.
		for _, f := range []struct {
			name string
			dst  *[]byte
		}{
			{"iv_vector", &in.IVVector},
			{"auth_tag", &in.AuthTag},
			{"encrypted_symmetric_key", &in.EncryptedKey},
		} {
			raw, ok := fields[f.name]
			if !ok || raw == "" {
				writeError(w, s.log, ValidationError{Msg: "missing required fields"})
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				writeError(w, s.log, ValidationError{Msg: "invalid encoding: " + f.name})
				return
			}
			*f.dst = decoded
		}

		rec, err := s.life.Upload(r.Context(), caller, in)
		if err != nil {
			writeError(w, s.log, err)
			return
		}

		writeJSON(w, http.StatusCreated, uploadResp{
			Success:         true,
			FileID:          rec.ID,
			FileName:        rec.FileName,
			FileSizeBytes:   rec.SizeBytes,
			UploadedAt:      rec.CreatedAt.Format(time.RFC3339),
			Status:          rec.Status,
			StatusUpdatedAt: rec.StatusUpdatedAt.Format(time.RFC3339),
			Message:         "File uploaded successfully. Waiting for owner approval.",
		})
	}
}
