package http

import "net/http"

// handleLive upgrades to the live-update websocket. The client must then join
// its own room.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, claimsFromContext(r.Context()).UserID)
}
