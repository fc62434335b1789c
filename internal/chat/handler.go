package chat

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	hub           *Hub
	maxFrameBytes int64
}

func NewHandler(hub *Hub, maxFrameBytes int64) *Handler {
	return &Handler{
		hub:           hub,
		maxFrameBytes: maxFrameBytes,
	}
}

// ServeWs upgrades the request and hands the connection to the hub.
// Authentication happens over the socket with login or auto_login.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(h.hub, conn)
	if !h.hub.attach(client) {
		conn.Close()
		return
	}
	h.hub.logger.Debugw("client connected", "client", client.ID, "remote", r.RemoteAddr)

	go client.WritePump()
	go client.ReadPump(h.maxFrameBytes)
}
