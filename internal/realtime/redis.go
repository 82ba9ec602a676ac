package realtime

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedis creates a new Redis client
func NewRedis() *redis.Client {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	return redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
}

const roomChannelPrefix = "relay:room:"

type roomEnvelope struct {
	Room     string          `json:"room"`
	SenderID uuid.UUID       `json:"sender_id"`
	Data     json.RawMessage `json:"data"`
}

// Bridge fans room messages out across instances over Redis pub/sub, so a
// member connected to another process still receives them.
type Bridge struct {
	RDB *redis.Client
	Hub *Hub
}

func NewBridge(rdb *redis.Client, hub *Hub) *Bridge {
	return &Bridge{RDB: rdb, Hub: hub}
}

// Publish pushes a room message through Redis; local delivery happens when
// the subscription loop receives it back.
func (b *Bridge) Publish(ctx context.Context, room string, senderID uuid.UUID, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	env, err := json.Marshal(roomEnvelope{Room: room, SenderID: senderID, Data: raw})
	if err != nil {
		return err
	}
	return b.RDB.Publish(ctx, roomChannelPrefix+room, env).Err()
}

// Run subscribes to all room channels and forwards into the local hub.
// It returns when ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.RDB.PSubscribe(ctx, roomChannelPrefix+"*")
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var env roomEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logrus.WithError(err).Warn("malformed relay envelope")
				continue
			}
			b.Hub.SendToRoom(env.Room, env.SenderID, json.RawMessage(env.Data))
		}
	}
}
