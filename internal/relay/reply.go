package relay

import (
	"context"
	"errors"
	"log"

	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/platform"
	"github.com/npezzotti/chat-relay/internal/types"
)

const (
	OriginNative        = "native"
	OriginRelayed       = "relayed"
	OriginRelayedNested = "relayed-nested"
)

// ReplyResolver reconstructs the original author and text behind a
// platform-native reply, even when the referenced message is one of
// our own relayed envelopes. Reads only; never mutates the store.
type ReplyResolver struct {
	log     *log.Logger
	gateway platform.Gateway
	db      database.RelayRepository
}

func NewReplyResolver(logger *log.Logger, gw platform.Gateway, db database.RelayRepository) *ReplyResolver {
	return &ReplyResolver{log: logger, gateway: gw, db: db}
}

// Resolve returns nil when the message is not a reply. Failures to
// recover the referenced message degrade to a placeholder context
// rather than dropping the relay.
func (rr *ReplyResolver) Resolve(ctx context.Context, msg platform.Message, roomId int) *types.ReplyContext {
	ref := msg.Reference
	if ref == nil || ref.MessageID == "" {
		return nil
	}

	// the message log has the original author for source messages we
	// already relayed, which skips a platform fetch
	entry, err := rr.db.GetLoggedMessage(roomId, ref.MessageID)
	if err == nil {
		return &types.ReplyContext{
			AuthorDisplay: entry.AuthorDisplay,
			QuotedText:    truncateQuote(entry.Content),
			OriginKind:    OriginRelayed,
		}
	}
	if !errors.Is(err, database.ErrNotFound) {
		rr.log.Println("logged message lookup:", err)
	}

	original := ref.Resolved
	if original == nil {
		channelId := ref.ChannelID
		if channelId == "" {
			channelId = msg.ChannelID
		}

		original, err = rr.gateway.FetchMessage(ctx, channelId, ref.MessageID)
		if err != nil {
			rr.log.Println("fetch referenced message:", err)
			return &types.ReplyContext{
				AuthorDisplay: "Unknown User",
				QuotedText:    "[message not found]",
				OriginKind:    OriginNative,
			}
		}
	}

	if original.AuthorIsBot && original.AuthorID == rr.gateway.BotUserID() {
		if parsed, ok := ParseEnvelope(original.Content); ok {
			// one level of nesting: the envelope's own main line names
			// the innermost author, so depth never grows past one
			origin := OriginRelayed
			if parsed.HasReply {
				origin = OriginRelayedNested
			}

			return &types.ReplyContext{
				AuthorDisplay: parsed.AuthorDisplay,
				QuotedText:    truncateQuote(parsed.Body),
				OriginKind:    origin,
			}
		}
	}

	quoted := original.Content
	if quoted == "" && len(original.Attachments) > 0 {
		quoted = "[attachment: " + original.Attachments[0].Filename + "]"
	}
	if quoted == "" {
		quoted = "[no text content]"
	}

	return &types.ReplyContext{
		AuthorDisplay: original.AuthorDisplay,
		QuotedText:    truncateQuote(quoted),
		OriginKind:    OriginNative,
	}
}
