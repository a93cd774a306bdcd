package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

// WSHandler streams leaderboard updates for a lobby and accepts answer
// submissions over the same socket.
type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// live session use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	lobbyID := r.URL.Query().Get("lobbyId")
	userID := r.URL.Query().Get("userId")
	if lobbyID == "" || userID == "" {
		http.Error(w, "missing lobbyId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	state, err := h.service.GetState(r.Context(), lobbyID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: wsError(err)})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), lobbyID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: wsError(err)})
		return
	}
	defer cancel()
	defer h.service.Leave(r.Context(), lobbyID, userID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer goroutine; the read loop and the updates pump both feed
	// it through send, so the connection never sees concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: state}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			result, err := h.service.SubmitAnswer(r.Context(), lobbyID, userID, inbound.Payload)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: wsError(err)}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		case "state":
			state, err := h.service.GetState(r.Context(), lobbyID, userID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: wsError(err)}
				continue
			}
			send <- outboundMessage[any]{Type: "state", Payload: state}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func wsError(err error) errorPayload {
	return errorPayload{Kind: string(domain.KindOf(err)), Message: err.Error()}
}
