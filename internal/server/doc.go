// Package server implements the HTTP backend for Secure Print Drop:
// intake of encrypted documents from uploader phones, the approval and
// print lifecycle driven by the owner's desktop, and the event stream
// that keeps the desktop in sync. It wires together the HTTP routes,
// dependencies (Postgres, MinIO) and lifecycle helpers used by tests
// and the production binary.
package server
