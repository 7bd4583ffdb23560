package database

import "time"

type RelayRepository interface {
	Ping() error

	CreateRoom(params CreateRoomParams) (Room, error)
	UpdateRoom(id int, params UpdateRoomParams) (Room, error)
	DeleteRoom(id int) error
	GetRoom(id int) (Room, error)
	GetRoomByName(name string) (Room, error)
	ListRooms(includeInactive bool) ([]Room, error)

	GetPermissions(roomId int) (RoomPermissions, error)
	UpdatePermissions(roomId int, params UpdatePermissionsParams) (RoomPermissions, error)

	RegisterChannel(params RegisterChannelParams) (Subscription, error)
	UnregisterChannel(roomId int, guildId, channelId string) error
	DeactivateSubscription(guildId, channelId string) error
	GetSubscription(guildId, channelId string) (Subscription, error)
	ListRoomChannels(roomId int, activeOnly bool) ([]Subscription, error)
	ListGuildChannels(guildId string) ([]Subscription, error)
	TouchSubscription(guildId, channelId string, at time.Time) error

	ListGuilds(activeOnly bool) ([]GuildSummary, error)
	GetGuild(guildId string) (GuildSummary, error)

	BanGuild(params BanGuildParams) (GuildBan, error)
	UnbanGuild(guildId, actor string) (GuildBan, error)
	GetActiveBan(guildId string) (GuildBan, error)
	ListBans(includeInactive bool) ([]GuildBan, error)

	AppendMessageLog(entry MessageLogEntry) (int64, error)
	GetLoggedMessage(roomId int, sourceMessageId string) (MessageLogEntry, error)
	ListRoomMessages(roomId, limit, offset int) ([]MessageLogEntry, error)
	ExportMessages(filter ExportFilter) ([]MessageLogEntry, error)

	LiveStats() (LiveStats, error)
	QueryMessageStats(days int) ([]DailyStat, error)
	QueryRoomStats(roomId, days int) (RoomStats, error)
	QueryGuildStats(guildId string, days int) (GuildStats, error)
	QueryGuildActivity(guildId string, hours int) ([]ActivityBucket, error)
	UpsertDailyStats(date time.Time) error
	QueryTrends(days int) ([]DailyStat, error)

	GetAdminByUsername(username string) (AdminUser, error)
	UpsertAdmin(username, passwordHash string, superuser bool) (AdminUser, error)
	TouchAdminLogin(id int) error

	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}
