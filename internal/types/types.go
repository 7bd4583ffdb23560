package types

import (
	"time"
)

type Room struct {
	Id           int       `json:"id"`
	Name         string    `json:"name"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	MaxServers   int       `json:"max_servers"`
	IsActive     bool      `json:"is_active"`
	ChannelCount int       `json:"channel_count"`
}

type RoomPermissions struct {
	RoomId              int  `json:"room_id"`
	AllowURLs           bool `json:"allow_urls"`
	AllowFiles          bool `json:"allow_files"`
	AllowMentions       bool `json:"allow_mentions"`
	AllowEmojis         bool `json:"allow_emojis"`
	EnableBadWordFilter bool `json:"enable_bad_word_filter"`
	MaxMessageLength    int  `json:"max_message_length"`
	RateLimitSeconds    int  `json:"rate_limit_seconds"`
}

type Subscription struct {
	RoomId        int        `json:"room_id"`
	GuildId       string     `json:"guild_id"`
	ChannelId     string     `json:"channel_id"`
	GuildName     string     `json:"guild_name"`
	ChannelName   string     `json:"channel_name"`
	RegisteredBy  string     `json:"registered_by"`
	RegisteredAt  time.Time  `json:"registered_at"`
	IsActive      bool       `json:"is_active"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

type GuildBan struct {
	GuildId    string     `json:"guild_id"`
	GuildName  string     `json:"guild_name"`
	Reason     string     `json:"reason"`
	BannedBy   string     `json:"banned_by"`
	BannedAt   time.Time  `json:"banned_at"`
	IsActive   bool       `json:"is_active"`
	UnbannedAt *time.Time `json:"unbanned_at,omitempty"`
	UnbannedBy string     `json:"unbanned_by,omitempty"`
}

type Attachment struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

type ReplyContext struct {
	AuthorDisplay string `json:"author_display"`
	QuotedText    string `json:"quoted_text"`
	OriginKind    string `json:"origin_kind"`
}

type MessageLogEntry struct {
	Id              int64         `json:"id"`
	RoomId          int           `json:"room_id"`
	SourceGuildId   string        `json:"source_guild_id"`
	SourceChannelId string        `json:"source_channel_id"`
	SourceMessageId string        `json:"source_message_id"`
	AuthorId        string        `json:"author_id"`
	AuthorDisplay   string        `json:"author_display"`
	Content         string        `json:"content"`
	Attachments     []Attachment  `json:"attachments,omitempty"`
	ReplyTo         *ReplyContext `json:"reply_to,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
	DeliveredCount  int           `json:"delivered_count"`
	FailedCount     int           `json:"failed_count"`
}

type AdminUser struct {
	Id          int        `json:"id"`
	Username    string     `json:"username"`
	IsSuperuser bool       `json:"is_superuser"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

type GuildSummary struct {
	GuildId      string     `json:"guild_id"`
	GuildName    string     `json:"guild_name"`
	ChannelCount int        `json:"channel_count"`
	IsBanned     bool       `json:"is_banned"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

type LiveStats struct {
	ActiveRooms    int   `json:"active_rooms"`
	ActiveChannels int   `json:"active_channels"`
	ActiveGuilds   int   `json:"active_guilds"`
	MessagesToday  int64 `json:"messages_today"`
	MessagesHour   int64 `json:"messages_hour"`
	BannedGuilds   int   `json:"banned_guilds"`
}

type DailyStat struct {
	Date         time.Time `json:"date"`
	RoomId       int       `json:"room_id"`
	MessageCount int       `json:"message_count"`
	UniqueUsers  int       `json:"unique_users"`
	UniqueGuilds int       `json:"unique_guilds"`
}
