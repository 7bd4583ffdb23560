package database

import "time"

type Room struct {
	Id           int
	Name         string
	CreatedBy    string
	CreatedAt    time.Time
	MaxServers   int
	IsActive     bool
	ChannelCount int
}

type RoomPermissions struct {
	RoomId              int
	AllowURLs           bool
	AllowFiles          bool
	AllowMentions       bool
	AllowEmojis         bool
	EnableBadWordFilter bool
	MaxMessageLength    int
	RateLimitSeconds    int
	UpdatedBy           string
	UpdatedAt           time.Time
}

type Subscription struct {
	Id            int
	RoomId        int
	GuildId       string
	ChannelId     string
	GuildName     string
	ChannelName   string
	RegisteredBy  string
	RegisteredAt  time.Time
	IsActive      bool
	LastMessageAt *time.Time
}

type GuildBan struct {
	Id         int
	GuildId    string
	GuildName  string
	Reason     string
	BannedBy   string
	BannedAt   time.Time
	IsActive   bool
	UnbannedAt *time.Time
	UnbannedBy string
}

type Attachment struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

type ReplyRef struct {
	AuthorDisplay string `json:"author_display"`
	QuotedText    string `json:"quoted_text"`
	OriginKind    string `json:"origin_kind"`
}

type MessageLogEntry struct {
	Id              int64
	RoomId          int
	SourceGuildId   string
	SourceChannelId string
	SourceMessageId string
	AuthorId        string
	AuthorDisplay   string
	Content         string
	Attachments     []Attachment
	ReplyTo         *ReplyRef
	Timestamp       time.Time
	DeliveredCount  int
	FailedCount     int
}

type AdminUser struct {
	Id           int
	Username     string
	PasswordHash string
	IsSuperuser  bool
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

type GuildSummary struct {
	GuildId      string
	GuildName    string
	ChannelCount int
	IsBanned     bool
	LastActivity *time.Time
}

type LiveStats struct {
	ActiveRooms    int
	ActiveChannels int
	ActiveGuilds   int
	MessagesToday  int64
	MessagesHour   int64
	BannedGuilds   int
}

type DailyStat struct {
	Date         time.Time
	RoomId       int
	MessageCount int
	UniqueUsers  int
	UniqueGuilds int
}

type GuildStats struct {
	GuildId       string
	GuildName     string
	MessageCount  int64
	UniqueAuthors int
	Rooms         int
}

type ActivityBucket struct {
	Hour         time.Time
	MessageCount int64
}

type RoomStats struct {
	RoomId        int
	MessageCount  int64
	UniqueAuthors int
	UniqueGuilds  int
	Delivered     int64
	Failed        int64
}

type CreateRoomParams struct {
	Name       string
	CreatedBy  string
	MaxServers int
}

type UpdateRoomParams struct {
	Name       *string
	MaxServers *int
	IsActive   *bool
}

type UpdatePermissionsParams struct {
	AllowURLs           *bool
	AllowFiles          *bool
	AllowMentions       *bool
	AllowEmojis         *bool
	EnableBadWordFilter *bool
	MaxMessageLength    *int
	RateLimitSeconds    *int
	UpdatedBy           string
}

type RegisterChannelParams struct {
	RoomId       int
	GuildId      string
	ChannelId    string
	GuildName    string
	ChannelName  string
	RegisteredBy string
}

type BanGuildParams struct {
	GuildId   string
	GuildName string
	Reason    string
	BannedBy  string
}

type ExportFilter struct {
	RoomId  int
	GuildId string
	Since   time.Time
	Until   time.Time
	Limit   int
}
