package server

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// handleChangeFeed upgrades the connection and streams dirty-signal frames
// until the client disconnects.
func (s *Server) handleChangeFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	newFeedClient(s.hub, conn).run(r.Context())
}
