package cache

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/npezzotti/chat-relay/internal/types"
)

type MockRelayCache struct {
	mock.Mock
}

func (m *MockRelayCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockRelayCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRelayCache) GetRoom(ctx context.Context, roomId int) (*types.Room, error) {
	args := m.Called(ctx, roomId)
	if room, ok := args.Get(0).(*types.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRelayCache) SetRoom(ctx context.Context, room types.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}
func (m *MockRelayCache) DropRoom(ctx context.Context, roomId int) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}
func (m *MockRelayCache) GetPermissions(ctx context.Context, roomId int) (*types.RoomPermissions, error) {
	args := m.Called(ctx, roomId)
	if perms, ok := args.Get(0).(*types.RoomPermissions); ok {
		return perms, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRelayCache) SetPermissions(ctx context.Context, perms types.RoomPermissions) error {
	args := m.Called(ctx, perms)
	return args.Error(0)
}
func (m *MockRelayCache) DropPermissions(ctx context.Context, roomId int) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}
func (m *MockRelayCache) GetChannelRoom(ctx context.Context, guildId, channelId string) (int, bool, bool, error) {
	args := m.Called(ctx, guildId, channelId)
	return args.Int(0), args.Bool(1), args.Bool(2), args.Error(3)
}
func (m *MockRelayCache) SetChannelRoom(ctx context.Context, guildId, channelId string, roomId int) error {
	args := m.Called(ctx, guildId, channelId, roomId)
	return args.Error(0)
}
func (m *MockRelayCache) SetChannelTombstone(ctx context.Context, guildId, channelId string) error {
	args := m.Called(ctx, guildId, channelId)
	return args.Error(0)
}
func (m *MockRelayCache) DropChannel(ctx context.Context, guildId, channelId string) error {
	args := m.Called(ctx, guildId, channelId)
	return args.Error(0)
}
func (m *MockRelayCache) GetBanVerdict(ctx context.Context, guildId string) (*bool, error) {
	args := m.Called(ctx, guildId)
	if verdict, ok := args.Get(0).(*bool); ok {
		return verdict, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRelayCache) SetBanVerdict(ctx context.Context, guildId string, banned bool) error {
	args := m.Called(ctx, guildId, banned)
	return args.Error(0)
}
func (m *MockRelayCache) DropBanVerdict(ctx context.Context, guildId string) error {
	args := m.Called(ctx, guildId)
	return args.Error(0)
}
func (m *MockRelayCache) IncrRate(ctx context.Context, roomId int, userId string, window time.Duration) (int64, time.Duration, error) {
	args := m.Called(ctx, roomId, userId, window)
	return args.Get(0).(int64), args.Get(1).(time.Duration), args.Error(2)
}
func (m *MockRelayCache) SeenDuplicate(ctx context.Context, roomId int, userId, content string) (bool, error) {
	args := m.Called(ctx, roomId, userId, content)
	return args.Bool(0), args.Error(1)
}
func (m *MockRelayCache) NoticeAllowed(ctx context.Context, userId, kind string) (bool, error) {
	args := m.Called(ctx, userId, kind)
	return args.Bool(0), args.Error(1)
}
func (m *MockRelayCache) AllowRequest(ctx context.Context, userId string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, userId, limit, window)
	return args.Bool(0), args.Error(1)
}
func (m *MockRelayCache) StoreSession(ctx context.Context, tokenHash string, s Session, ttl time.Duration) error {
	args := m.Called(ctx, tokenHash, s, ttl)
	return args.Error(0)
}
func (m *MockRelayCache) GetSession(ctx context.Context, tokenHash string) (*Session, error) {
	args := m.Called(ctx, tokenHash)
	if s, ok := args.Get(0).(*Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRelayCache) DeleteSession(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}
func (m *MockRelayCache) GetLiveStats(ctx context.Context) (*types.LiveStats, error) {
	args := m.Called(ctx)
	if stats, ok := args.Get(0).(*types.LiveStats); ok {
		return stats, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRelayCache) SetLiveStats(ctx context.Context, stats types.LiveStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}
func (m *MockRelayCache) Publish(ctx context.Context, topic string, payload any) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}
func (m *MockRelayCache) Subscribe(ctx context.Context, topics ...string) (<-chan Event, func() error) {
	args := m.Called(ctx, topics)
	return args.Get(0).(<-chan Event), args.Get(1).(func() error)
}
