package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/lyp1noff/champion-arena-sub000/brackets"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin,
		// чтобы разрешать подключения только с доверенных доменов.
		return true
	},
}

type WebSocketHandler struct {
	hub *brackets.Hub
}

func NewWebSocketHandler(hub *brackets.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeWs подключает клиента к комнате сетки: каждое изменение сетки
// рассылается всем её подписчикам.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	bracketID, err := readIDParam(r, "bracketID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection for bracket %d: %v", bracketID, err)
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: brackets.BracketRoomID(bracketID),
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
