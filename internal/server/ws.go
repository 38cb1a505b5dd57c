package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades the client connection and bridges it to the live
// transcription upstream for the duration of the recording.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stream == nil || !s.deps.Stream.Enabled() {
		writeJSONError(w, http.StatusServiceUnavailable, "live transcription not configured")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Log.Warnw("ws upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	if err := s.deps.Stream.Bridge(r.Context(), conn); err != nil {
		s.deps.Log.Warnw("stream bridge ended", "error", err)
	}
}
