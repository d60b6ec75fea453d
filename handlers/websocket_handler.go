package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/solarchallenge/draw-server/draw"
	"github.com/solarchallenge/draw-server/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin.
		return true
	},
}

type WebSocketHandler struct {
	hub         *draw.Hub
	drawService services.DrawService
}

func NewWebSocketHandler(hub *draw.Hub, drawService services.DrawService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		drawService: drawService,
	}
}

// ServeWs подключает клиента к комнате события: /ws/events/{eventID}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.Atoi(chi.URLParam(r, "eventID"))
	if err != nil || eventID <= 0 {
		http.Error(w, "Invalid eventID", http.StatusBadRequest)
		return
	}

	if _, err := h.drawService.GetEvent(r.Context(), eventID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection for event %d: %v", eventID, err)
		return
	}

	client := &draw.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: draw.EventRoom(eventID),
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	log.Printf("Client registered for room %s.", client.Room)
}
