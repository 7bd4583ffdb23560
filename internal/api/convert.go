package api

import (
	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/types"
)

func roomResponse(room database.Room) types.Room {
	return types.Room{
		Id:           room.Id,
		Name:         room.Name,
		CreatedBy:    room.CreatedBy,
		CreatedAt:    room.CreatedAt,
		MaxServers:   room.MaxServers,
		IsActive:     room.IsActive,
		ChannelCount: room.ChannelCount,
	}
}

func permissionsResponse(perms database.RoomPermissions) types.RoomPermissions {
	return types.RoomPermissions{
		RoomId:              perms.RoomId,
		AllowURLs:           perms.AllowURLs,
		AllowFiles:          perms.AllowFiles,
		AllowMentions:       perms.AllowMentions,
		AllowEmojis:         perms.AllowEmojis,
		EnableBadWordFilter: perms.EnableBadWordFilter,
		MaxMessageLength:    perms.MaxMessageLength,
		RateLimitSeconds:    perms.RateLimitSeconds,
	}
}

func subscriptionResponse(sub database.Subscription) types.Subscription {
	return types.Subscription{
		RoomId:        sub.RoomId,
		GuildId:       sub.GuildId,
		ChannelId:     sub.ChannelId,
		GuildName:     sub.GuildName,
		ChannelName:   sub.ChannelName,
		RegisteredBy:  sub.RegisteredBy,
		RegisteredAt:  sub.RegisteredAt,
		IsActive:      sub.IsActive,
		LastMessageAt: sub.LastMessageAt,
	}
}

func banResponse(ban database.GuildBan) types.GuildBan {
	return types.GuildBan{
		GuildId:    ban.GuildId,
		GuildName:  ban.GuildName,
		Reason:     ban.Reason,
		BannedBy:   ban.BannedBy,
		BannedAt:   ban.BannedAt,
		IsActive:   ban.IsActive,
		UnbannedAt: ban.UnbannedAt,
		UnbannedBy: ban.UnbannedBy,
	}
}

func messageResponse(entry database.MessageLogEntry) types.MessageLogEntry {
	msg := types.MessageLogEntry{
		Id:              entry.Id,
		RoomId:          entry.RoomId,
		SourceGuildId:   entry.SourceGuildId,
		SourceChannelId: entry.SourceChannelId,
		SourceMessageId: entry.SourceMessageId,
		AuthorId:        entry.AuthorId,
		AuthorDisplay:   entry.AuthorDisplay,
		Content:         entry.Content,
		Timestamp:       entry.Timestamp,
		DeliveredCount:  entry.DeliveredCount,
		FailedCount:     entry.FailedCount,
	}

	for _, a := range entry.Attachments {
		msg.Attachments = append(msg.Attachments, types.Attachment{
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
		})
	}

	if entry.ReplyTo != nil {
		msg.ReplyTo = &types.ReplyContext{
			AuthorDisplay: entry.ReplyTo.AuthorDisplay,
			QuotedText:    entry.ReplyTo.QuotedText,
			OriginKind:    entry.ReplyTo.OriginKind,
		}
	}

	return msg
}

func guildResponse(g database.GuildSummary) types.GuildSummary {
	return types.GuildSummary{
		GuildId:      g.GuildId,
		GuildName:    g.GuildName,
		ChannelCount: g.ChannelCount,
		IsBanned:     g.IsBanned,
		LastActivity: g.LastActivity,
	}
}
