// errors.go - Error taxonomy and the JSON error responses handlers emit.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Sentinel errors for the authorization / lookup failures every operation
// checks before mutating anything.
var (
	ErrNotFound       = errors.New("file not found")
	ErrForbidden      = errors.New("forbidden: not your file")
	ErrAlreadyDeleted = errors.New("file already deleted")
	ErrTooLarge       = errors.New("file too large (max 50MB)")
)

// ValidationError covers bad input shape, size or extension. The message is
// safe to echo to the caller.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// StoreError wraps a persistence failure. The cause is logged for operators
// and never included in the response body.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }
func (e StoreError) Unwrap() error { return e.Err }

// errorResp is the structured failure body shared by every endpoint.
type errorResp struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// writeError maps the error taxonomy onto HTTP status codes:
// validation and invalid transitions are 400, authorization 403, unknown
// ids 404, store and unexpected failures a generic 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		code = http.StatusInternalServerError
		msg  = "internal error"
	)

	var ve ValidationError
	var te InvalidTransitionError
	var se StoreError
	switch {
	case errors.As(err, &ve):
		code, msg = http.StatusBadRequest, ve.Msg
	case errors.As(err, &te):
		code, msg = http.StatusBadRequest, te.Error()
	case errors.Is(err, ErrAlreadyDeleted):
		code, msg = http.StatusBadRequest, ErrAlreadyDeleted.Error()
	case errors.Is(err, ErrTooLarge):
		code, msg = http.StatusRequestEntityTooLarge, ErrTooLarge.Error()
	case errors.Is(err, ErrForbidden):
		code, msg = http.StatusForbidden, ErrForbidden.Error()
	case errors.Is(err, ErrNotFound):
		code, msg = http.StatusNotFound, ErrNotFound.Error()
	case errors.As(err, &se):
		log.Error("store failure", zap.String("op", se.Op), zap.Error(se.Err))
	default:
		log.Error("unhandled failure", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResp{Error: true, Message: msg})
}

// writeJSON encodes a success body with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
