// Package gateway accepts long-lived bidirectional client connections and
// turns inbound frames into service calls. It owns connection identities and
// membership cleanup; it never touches persistence directly.
package gateway

import (
	"chat-relay/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Gateway struct {
	log           *slog.Logger
	chat          services.IChatService
	upgrader      websocket.Upgrader
	sendBuffer    int
	ingestTimeout time.Duration
}

func NewGateway(log *slog.Logger, chat services.IChatService, sendBuffer int, ingestTimeout time.Duration) *Gateway {
	return &Gateway{
		log:  log,
		chat: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy is the reverse proxy's problem, like CORS.
				return true
			},
		},
		sendBuffer:    sendBuffer,
		ingestTimeout: ingestTimeout,
	}
}

// Handle upgrades the request and runs the connection until the peer goes
// away. Each connection gets a fresh identity for its lifetime; on exit the
// connection is removed from every room it joined, with no broadcast.
func (g *Gateway) Handle(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:            uuid.NewString(),
		conn:          conn,
		send:          make(chan Envelope, g.sendBuffer),
		chat:          g.chat,
		log:           g.log,
		ingestTimeout: g.ingestTimeout,
	}

	g.chat.Connect(client.id, client)
	g.log.Debug("Connection accepted", "conn", client.id)

	defer func() {
		g.chat.Disconnect(client.id)
		_ = conn.Close()
		g.log.Debug("Connection closed", "conn", client.id)
	}()

	go client.writePump()
	client.readPump()
}
