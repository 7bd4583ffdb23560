package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockRelayRepository struct {
	mock.Mock
}

func (m *MockRelayRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRelayRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRelayRepository) UpdateRoom(id int, params UpdateRoomParams) (Room, error) {
	args := m.Called(id, params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRelayRepository) DeleteRoom(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockRelayRepository) GetRoom(id int) (Room, error) {
	args := m.Called(id)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRelayRepository) GetRoomByName(name string) (Room, error) {
	args := m.Called(name)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRelayRepository) ListRooms(includeInactive bool) ([]Room, error) {
	args := m.Called(includeInactive)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockRelayRepository) GetPermissions(roomId int) (RoomPermissions, error) {
	args := m.Called(roomId)
	return args.Get(0).(RoomPermissions), args.Error(1)
}
func (m *MockRelayRepository) UpdatePermissions(roomId int, params UpdatePermissionsParams) (RoomPermissions, error) {
	args := m.Called(roomId, params)
	return args.Get(0).(RoomPermissions), args.Error(1)
}
func (m *MockRelayRepository) RegisterChannel(params RegisterChannelParams) (Subscription, error) {
	args := m.Called(params)
	return args.Get(0).(Subscription), args.Error(1)
}
func (m *MockRelayRepository) UnregisterChannel(roomId int, guildId, channelId string) error {
	args := m.Called(roomId, guildId, channelId)
	return args.Error(0)
}
func (m *MockRelayRepository) DeactivateSubscription(guildId, channelId string) error {
	args := m.Called(guildId, channelId)
	return args.Error(0)
}
func (m *MockRelayRepository) GetSubscription(guildId, channelId string) (Subscription, error) {
	args := m.Called(guildId, channelId)
	return args.Get(0).(Subscription), args.Error(1)
}
func (m *MockRelayRepository) ListRoomChannels(roomId int, activeOnly bool) ([]Subscription, error) {
	args := m.Called(roomId, activeOnly)
	return args.Get(0).([]Subscription), args.Error(1)
}
func (m *MockRelayRepository) ListGuildChannels(guildId string) ([]Subscription, error) {
	args := m.Called(guildId)
	return args.Get(0).([]Subscription), args.Error(1)
}
func (m *MockRelayRepository) TouchSubscription(guildId, channelId string, at time.Time) error {
	args := m.Called(guildId, channelId, at)
	return args.Error(0)
}
func (m *MockRelayRepository) ListGuilds(activeOnly bool) ([]GuildSummary, error) {
	args := m.Called(activeOnly)
	return args.Get(0).([]GuildSummary), args.Error(1)
}
func (m *MockRelayRepository) GetGuild(guildId string) (GuildSummary, error) {
	args := m.Called(guildId)
	return args.Get(0).(GuildSummary), args.Error(1)
}
func (m *MockRelayRepository) BanGuild(params BanGuildParams) (GuildBan, error) {
	args := m.Called(params)
	return args.Get(0).(GuildBan), args.Error(1)
}
func (m *MockRelayRepository) UnbanGuild(guildId, actor string) (GuildBan, error) {
	args := m.Called(guildId, actor)
	return args.Get(0).(GuildBan), args.Error(1)
}
func (m *MockRelayRepository) GetActiveBan(guildId string) (GuildBan, error) {
	args := m.Called(guildId)
	return args.Get(0).(GuildBan), args.Error(1)
}
func (m *MockRelayRepository) ListBans(includeInactive bool) ([]GuildBan, error) {
	args := m.Called(includeInactive)
	return args.Get(0).([]GuildBan), args.Error(1)
}
func (m *MockRelayRepository) AppendMessageLog(entry MessageLogEntry) (int64, error) {
	args := m.Called(entry)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockRelayRepository) GetLoggedMessage(roomId int, sourceMessageId string) (MessageLogEntry, error) {
	args := m.Called(roomId, sourceMessageId)
	return args.Get(0).(MessageLogEntry), args.Error(1)
}
func (m *MockRelayRepository) ListRoomMessages(roomId, limit, offset int) ([]MessageLogEntry, error) {
	args := m.Called(roomId, limit, offset)
	return args.Get(0).([]MessageLogEntry), args.Error(1)
}
func (m *MockRelayRepository) ExportMessages(filter ExportFilter) ([]MessageLogEntry, error) {
	args := m.Called(filter)
	return args.Get(0).([]MessageLogEntry), args.Error(1)
}
func (m *MockRelayRepository) LiveStats() (LiveStats, error) {
	args := m.Called()
	return args.Get(0).(LiveStats), args.Error(1)
}
func (m *MockRelayRepository) QueryMessageStats(days int) ([]DailyStat, error) {
	args := m.Called(days)
	return args.Get(0).([]DailyStat), args.Error(1)
}
func (m *MockRelayRepository) QueryRoomStats(roomId, days int) (RoomStats, error) {
	args := m.Called(roomId, days)
	return args.Get(0).(RoomStats), args.Error(1)
}
func (m *MockRelayRepository) QueryGuildStats(guildId string, days int) (GuildStats, error) {
	args := m.Called(guildId, days)
	return args.Get(0).(GuildStats), args.Error(1)
}
func (m *MockRelayRepository) QueryGuildActivity(guildId string, hours int) ([]ActivityBucket, error) {
	args := m.Called(guildId, hours)
	return args.Get(0).([]ActivityBucket), args.Error(1)
}
func (m *MockRelayRepository) UpsertDailyStats(date time.Time) error {
	args := m.Called(date)
	return args.Error(0)
}
func (m *MockRelayRepository) QueryTrends(days int) ([]DailyStat, error) {
	args := m.Called(days)
	return args.Get(0).([]DailyStat), args.Error(1)
}
func (m *MockRelayRepository) GetAdminByUsername(username string) (AdminUser, error) {
	args := m.Called(username)
	return args.Get(0).(AdminUser), args.Error(1)
}
func (m *MockRelayRepository) UpsertAdmin(username, passwordHash string, superuser bool) (AdminUser, error) {
	args := m.Called(username, passwordHash, superuser)
	return args.Get(0).(AdminUser), args.Error(1)
}
func (m *MockRelayRepository) TouchAdminLogin(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockRelayRepository) GetSetting(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}
func (m *MockRelayRepository) SetSetting(key, value string) error {
	args := m.Called(key, value)
	return args.Error(0)
}
