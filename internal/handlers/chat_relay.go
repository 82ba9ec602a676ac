package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/internal/models"
	"github.com/gigbridge/gigbridge-backend/internal/realtime"
	"github.com/gigbridge/gigbridge-backend/internal/utils"
)

// ChatRelayHandler forwards room-scoped messages between a job's owner and
// its freelancers. Nothing is stored and nothing is guaranteed: a member who
// is offline simply misses the message.
type ChatRelayHandler struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	Bridge    *realtime.Bridge
	JWTSecret string
}

func NewChatRelayHandler(db *gorm.DB, hub *realtime.Hub, bridge *realtime.Bridge, jwtSecret string) *ChatRelayHandler {
	return &ChatRelayHandler{DB: db, Hub: hub, Bridge: bridge, JWTSecret: jwtSecret}
}

// userFromToken authenticates the websocket query token. The ws upgrade
// cannot go through the cookie middleware chain, so the token rides in the
// query string.
func (h *ChatRelayHandler) userFromToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &utils.Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(h.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, err
	}
	claims, ok := token.Claims.(*utils.Claims)
	if !ok {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}
	return uuid.Parse(claims.UserID)
}

// canJoin allows the job owner, the assigned freelancer and any freelancer
// with a bid on the job into the job's room.
func (h *ChatRelayHandler) canJoin(userID, jobID uuid.UUID) bool {
	var job models.Job
	if err := h.DB.First(&job, "id = ?", jobID).Error; err != nil {
		return false
	}
	if job.CreatedBy == userID {
		return true
	}
	if job.AssignedTo != nil && *job.AssignedTo == userID {
		return true
	}
	var count int64
	h.DB.Model(&models.Bid{}).
		Where("job_id = ? AND freelancer_id = ?", jobID, userID).
		Count(&count)
	return count > 0
}

func (h *ChatRelayHandler) WebSocketHandler(c *websocket.Conn) {
	tokenStr := c.Query("token")
	roomStr := c.Query("room")

	userID, err := h.userFromToken(tokenStr)
	if err != nil {
		logrus.WithError(err).Warn("ws: rejected token")
		c.Close()
		return
	}

	jobID, err := uuid.Parse(roomStr)
	if err != nil || !h.canJoin(userID, jobID) {
		c.Close()
		return
	}

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Room:   roomStr,
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer h.Hub.UnregisterClient(client)

	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		var payload map[string]interface{}
		if err := c.ReadJSON(&payload); err != nil {
			break
		}
		if msgType, ok := payload["type"].(string); ok && msgType == "pong" {
			continue
		}

		payload["sender_id"] = userID.String()
		if err := h.Bridge.Publish(context.Background(), roomStr, userID, payload); err != nil {
			// fall back to local delivery when Redis is down
			logrus.WithError(err).Warn("ws: publish failed, delivering locally")
			h.Hub.SendToRoom(roomStr, userID, payload)
		}
	}
}
