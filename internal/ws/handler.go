package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tabletop-service/internal/model"
	"tabletop-service/internal/service/game"
	pkgAuth "tabletop-service/pkg/auth"
	appErr "tabletop-service/pkg/errors"
	"tabletop-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types relayed between the two participants.
const (
	MsgTypeMove = "move"
	MsgTypeChat = "chat"
	MsgTypeSync = "sync"
)

type Handler struct {
	gameSvc *game.Service
	hub     *hub
}

func NewHandler(gameSvc *game.Service) *Handler {
	return &Handler{gameSvc: gameSvc, hub: newHub()}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// HandleGameWS upgrades a participant's connection and relays frames
// to the opponent. Move frames are persisted before being relayed.
func (h *Handler) HandleGameWS(c *gin.Context) {
	publicID := strings.TrimSpace(c.Param("publicId"))
	if publicID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}

	token, err := getTokenFromRequest(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	claims, err := pkgAuth.ParseUserToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := claims.SubjectID

	g, err := h.gameSvc.GetGameByPublicID(c.Request.Context(), publicID)
	if err != nil {
		if errors.Is(err, appErr.ErrGameNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game"})
		return
	}
	if g.PlayerOneID != userID && g.PlayerTwoID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "game access denied"})
		return
	}
	if g.Status != model.GameStatusInProgress {
		c.JSON(http.StatusConflict, gin.H{"error": "game already finished"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New WebSocket connection",
		zap.Int64("gameID", g.ID),
		zap.Int64("userID", userID),
	)

	room := h.hub.room(g.ID)
	client := newClient(conn, userID, g.ID, room, h)
	client.run()
	h.hub.release(room)
}

func getTokenFromRequest(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token != "" {
		return token, nil
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}
	return "", errors.New("missing token")
}

type client struct {
	conn      *websocket.Conn
	userID    int64
	gameID    int64
	room      *room
	handler   *Handler
	outbound  <-chan OutgoingMessage
	done      chan struct{}
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, userID, gameID int64, room *room, handler *Handler) *client {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &client{
		conn:      conn,
		userID:    userID,
		gameID:    gameID,
		room:      room,
		handler:   handler,
		outbound:  room.subscribe(userID),
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.room.unsubscribe(c.userID, c.outbound)
		c.conn.Close()
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.Int64("userID", c.userID), zap.Int64("gameID", c.gameID))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var incoming struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.safeWrite(OutgoingMessage{
				ID:   uuid.NewString(),
				Type: "error",
				Data: gin.H{"message": "invalid payload"},
			})
			continue
		}
		if incoming.Type == "" {
			continue
		}

		c.handleFrame(incoming.Type, incoming.Data)
	}
}

func (c *client) handleFrame(msgType string, data json.RawMessage) {
	switch msgType {
	case MsgTypeMove:
		move, err := c.handler.gameSvc.SubmitMove(c.reqContext(), c.gameID, c.userID, data, nil)
		if err != nil {
			c.safeWrite(OutgoingMessage{
				ID:   uuid.NewString(),
				Type: "error",
				Data: gin.H{"message": fmt.Sprintf("move rejected: %v", err)},
			})
			return
		}
		c.room.broadcast(c.userID, OutgoingMessage{
			ID:     uuid.NewString(),
			Type:   MsgTypeMove,
			FromID: c.userID,
			Data:   gin.H{"moveNo": move.MoveNo, "payload": data},
		})
	case MsgTypeChat, MsgTypeSync:
		c.room.broadcast(c.userID, OutgoingMessage{
			ID:     uuid.NewString(),
			Type:   msgType,
			FromID: c.userID,
			Data:   data,
		})
	default:
		c.safeWrite(OutgoingMessage{
			ID:   uuid.NewString(),
			Type: "error",
			Data: gin.H{"message": "unknown message type"},
		})
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.Int64("userID", c.userID), zap.Int64("gameID", c.gameID))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) safeWrite(msg OutgoingMessage) {
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Log.Info("WS write error", zap.Error(err), zap.Int64("userID", c.userID), zap.Int64("gameID", c.gameID))
	}
}

func (c *client) reqContext() context.Context {
	return context.Background()
}
