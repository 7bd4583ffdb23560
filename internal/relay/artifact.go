package relay

import (
	"time"

	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/platform"
	"github.com/npezzotti/chat-relay/internal/types"
)

// Artifact is the per-event decision record. It lives for exactly one
// trip through the pipeline and is discarded once fan-out completes.
type Artifact struct {
	Event platform.Message

	Room  types.Room
	Perms types.RoomPermissions

	// post-filter content and accepted attachments
	Content     string
	Attachments []types.Attachment

	Reply    *types.ReplyContext
	Envelope string

	// every active subscription of the room except the source channel
	Targets []database.Subscription

	ReceivedAt time.Time
}

// LogEntry converts the completed artifact into its durable telemetry
// row.
func (a *Artifact) LogEntry(delivered, failed int) database.MessageLogEntry {
	var reply *database.ReplyRef
	if a.Reply != nil {
		reply = &database.ReplyRef{
			AuthorDisplay: a.Reply.AuthorDisplay,
			QuotedText:    a.Reply.QuotedText,
			OriginKind:    a.Reply.OriginKind,
		}
	}

	attachments := make([]database.Attachment, 0, len(a.Attachments))
	for _, at := range a.Attachments {
		attachments = append(attachments, database.Attachment{
			Filename:    at.Filename,
			URL:         at.URL,
			ContentType: at.ContentType,
		})
	}

	return database.MessageLogEntry{
		RoomId:          a.Room.Id,
		SourceGuildId:   a.Event.GuildID,
		SourceChannelId: a.Event.ChannelID,
		SourceMessageId: a.Event.ID,
		AuthorId:        a.Event.AuthorID,
		AuthorDisplay:   a.Event.AuthorDisplay,
		Content:         a.Content,
		Attachments:     attachments,
		ReplyTo:         reply,
		Timestamp:       a.ReceivedAt,
		DeliveredCount:  delivered,
		FailedCount:     failed,
	}
}
