package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/npezzotti/chat-relay/internal/types"
)

// Pub/sub topics shared by the relay, the admin API and the live push
// hub. Subscribers must act idempotently; delivery is at-least-once.
const (
	TopicInvalidate         = "invalidate"
	TopicNewMessage         = "new_message"
	TopicSystemNotification = "system_notification"
	TopicRoomUpdate         = "room_update"
	TopicChannelUpdate      = "channel_update"
)

// TTLs per key family. Derived state only; the store stays
// authoritative and invalidations bound the staleness window.
const (
	TTLRoom        = time.Hour
	TTLPermissions = 30 * time.Minute
	TTLChannel     = 2 * time.Hour
	TTLTombstone   = 5 * time.Minute
	TTLBanVerdict  = 10 * time.Minute
	TTLLiveStats   = time.Minute
	TTLDuplicate   = time.Minute
	TTLNotice      = time.Minute
)

type Session struct {
	UserId      int       `json:"user_id"`
	Username    string    `json:"username"`
	IsSuperuser bool      `json:"is_superuser"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Event struct {
	Topic   string
	Payload []byte
}

// Invalidation identifies the entity kind and key an admin write
// touched. Handled idempotently: dropping an already absent key is a
// no-op.
type Invalidation struct {
	Kind      string `json:"kind"`
	RoomId    int    `json:"room_id,omitempty"`
	GuildId   string `json:"guild_id,omitempty"`
	ChannelId string `json:"channel_id,omitempty"`
}

const (
	InvalidateRoom        = "room"
	InvalidatePermissions = "permissions"
	InvalidateChannel     = "channel"
	InvalidateBan         = "ban"
)

func DecodeInvalidation(payload []byte) (Invalidation, error) {
	var inv Invalidation
	err := json.Unmarshal(payload, &inv)
	return inv, err
}

type RelayCache interface {
	Ping(ctx context.Context) error

	GetRoom(ctx context.Context, roomId int) (*types.Room, error)
	SetRoom(ctx context.Context, room types.Room) error
	DropRoom(ctx context.Context, roomId int) error

	GetPermissions(ctx context.Context, roomId int) (*types.RoomPermissions, error)
	SetPermissions(ctx context.Context, perms types.RoomPermissions) error
	DropPermissions(ctx context.Context, roomId int) error

	// GetChannelRoom reports (roomId, tombstone, hit). A tombstone is a
	// cached "known not subscribed" so chatty unsubscribed channels do
	// not hammer the store.
	GetChannelRoom(ctx context.Context, guildId, channelId string) (int, bool, bool, error)
	SetChannelRoom(ctx context.Context, guildId, channelId string, roomId int) error
	SetChannelTombstone(ctx context.Context, guildId, channelId string) error
	DropChannel(ctx context.Context, guildId, channelId string) error

	GetBanVerdict(ctx context.Context, guildId string) (*bool, error)
	SetBanVerdict(ctx context.Context, guildId string, banned bool) error
	DropBanVerdict(ctx context.Context, guildId string) error

	// IncrRate linearizes concurrent submissions on the cache's atomic
	// increment. Returns the window count and the remaining window.
	IncrRate(ctx context.Context, roomId int, userId string, window time.Duration) (int64, time.Duration, error)

	SeenDuplicate(ctx context.Context, roomId int, userId, content string) (bool, error)

	// NoticeAllowed rations ephemeral author notices to one per failure
	// kind per minute.
	NoticeAllowed(ctx context.Context, userId, kind string) (bool, error)

	// AllowRequest is the admin-plane request rate limit.
	AllowRequest(ctx context.Context, userId string, limit int, window time.Duration) (bool, error)

	StoreSession(ctx context.Context, tokenHash string, s Session, ttl time.Duration) error
	GetSession(ctx context.Context, tokenHash string) (*Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error

	GetLiveStats(ctx context.Context) (*types.LiveStats, error)
	SetLiveStats(ctx context.Context, stats types.LiveStats) error

	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(ctx context.Context, topics ...string) (<-chan Event, func() error)

	Close() error
}
