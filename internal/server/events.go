// events.go - Server-sent events stream for real-time notifications.
package server

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// streamHandler handles GET /events/stream: a long-lived SSE connection
// carrying new_file, status_update and file_status_changed events for the
// authenticated principal. The stream opens with a `connected` event and
// emits a `: keepalive` comment whenever nothing else has been sent for
// one keepalive interval, so intermediaries do not time the connection
// out. Client disconnect promptly deregisters the channel.
func (s *Server) streamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		sub := s.hub.Subscribe(caller.ID)
		defer s.hub.Unsubscribe(sub)

		fmt.Fprint(w, "event: connected\ndata: {\"message\": \"Connected to notification stream\"}\n\n")
		flusher.Flush()

		keepalive := time.NewTicker(s.cfg.KeepaliveInterval)
		defer keepalive.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, open := <-sub.C:
				if !open {
					return
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Data); err != nil {
					s.log.Debug("stream write failed, closing",
						zap.String("principal", caller.ID), zap.Error(err))
					return
				}
				flusher.Flush()
				keepalive.Reset(s.cfg.KeepaliveInterval)
			case <-keepalive.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
