package platform

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/npezzotti/chat-relay/internal/types"
)

const defaultCallTimeout = 10 * time.Second

// DiscordGateway adapts a discordgo session to the Gateway seam.
type DiscordGateway struct {
	log     *log.Logger
	session *discordgo.Session
}

func NewDiscordGateway(logger *log.Logger, token string) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &DiscordGateway{log: logger, session: session}, nil
}

func (g *DiscordGateway) Open() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	g.log.Printf("gateway connected as %q", g.session.State.User.Username)
	return nil
}

func (g *DiscordGateway) Close() error {
	return g.session.Close()
}

func (g *DiscordGateway) BotUserID() string {
	if g.session.State != nil && g.session.State.User != nil {
		return g.session.State.User.ID
	}

	return ""
}

func (g *DiscordGateway) OnMessageCreate(handler MessageHandler) {
	g.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		handler(g.convertMessage(m.Message))
	})
}

func (g *DiscordGateway) convertMessage(m *discordgo.Message) Message {
	msg := Message{
		ID:          m.ID,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		Content:     m.Content,
		HasMentions: len(m.Mentions) > 0 || len(m.MentionRoles) > 0 || m.MentionEveryone,
		Timestamp:   m.Timestamp,
	}

	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorDisplay = m.Author.Username
		msg.AuthorIsBot = m.Author.Bot
		if m.Author.GlobalName != "" {
			msg.AuthorDisplay = m.Author.GlobalName
		}
	}
	if m.Member != nil && m.Member.Nick != "" {
		msg.AuthorDisplay = m.Member.Nick
	}

	if guild, err := g.session.State.Guild(m.GuildID); err == nil {
		msg.GuildName = guild.Name
	}
	if channel, err := g.session.State.Channel(m.ChannelID); err == nil {
		msg.ChannelName = channel.Name
	}

	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, types.Attachment{
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
		})
	}

	if m.MessageReference != nil {
		ref := &Reference{
			MessageID: m.MessageReference.MessageID,
			ChannelID: m.MessageReference.ChannelID,
			GuildID:   m.MessageReference.GuildID,
		}
		if m.ReferencedMessage != nil {
			resolved := g.convertMessage(m.ReferencedMessage)
			ref.Resolved = &resolved
		}
		msg.Reference = ref
	}

	return msg
}

func callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultCallTimeout)
}

func (g *DiscordGateway) SendMessage(ctx context.Context, channelId, content string) (string, error) {
	ctx, cancel := callContext(ctx)
	defer cancel()

	// relayed envelopes never ping; mention tokens stay visible as text
	sent, err := g.session.ChannelMessageSendComplex(channelId, &discordgo.MessageSend{
		Content: content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", classifyDiscordError(err)
	}

	return sent.ID, nil
}

func (g *DiscordGateway) FetchMessage(ctx context.Context, channelId, messageId string) (*Message, error) {
	ctx, cancel := callContext(ctx)
	defer cancel()

	m, err := g.session.ChannelMessage(channelId, messageId, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyDiscordError(err)
	}

	msg := g.convertMessage(m)
	return &msg, nil
}

func (g *DiscordGateway) NotifyAuthor(ctx context.Context, userId, content string) error {
	ctx, cancel := callContext(ctx)
	defer cancel()

	dm, err := g.session.UserChannelCreate(userId, discordgo.WithContext(ctx))
	if err != nil {
		return classifyDiscordError(err)
	}

	if _, err := g.session.ChannelMessageSend(dm.ID, content, discordgo.WithContext(ctx)); err != nil {
		return classifyDiscordError(err)
	}

	return nil
}

// classifyDiscordError sorts SDK failures into the retry taxonomy:
// 429 is rate limiting (with a retry-after only when the SDK reports a
// RateLimitError), 403/404 and any other 4xx mean the target is gone
// for good, everything else (timeouts, 5xx, transport) is worth
// retrying.
func classifyDiscordError(err error) *DeliveryError {
	var rateErr discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return &DeliveryError{
			Kind:       FailureRateLimited,
			RetryAfter: rateErr.RetryAfter,
			Err:        err,
		}
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden, http.StatusNotFound:
			return &DeliveryError{Kind: FailurePermanent, Err: err}
		case http.StatusTooManyRequests:
			return &DeliveryError{Kind: FailureRateLimited, Err: err}
		}
		if restErr.Response.StatusCode >= 500 {
			return &DeliveryError{Kind: FailureTransient, Err: err}
		}

		return &DeliveryError{Kind: FailurePermanent, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &DeliveryError{Kind: FailureTransient, Err: err}
	}

	return &DeliveryError{Kind: FailureTransient, Err: err}
}
