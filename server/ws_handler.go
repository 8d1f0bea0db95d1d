package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/gen1nya/WinMediaSessionProvider/logger"
)

var wsUpgrader = websocket.Upgrader{
	// Local-only service, the tray UI and visualizers connect from
	// arbitrary origins (file://, app://).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler upgrades the connection and hands it to the broadcast
// hub. The stream is outbound-only; inbound frames are discarded.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	if err := s.hub.Accept(conn); err != nil {
		logger.Warn("consumer rejected", logger.ErrorField(err))
	}
}
