package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/chat-relay/internal/types"
)

// Message is the platform-neutral view of an inbound chat event.
type Message struct {
	ID            string
	GuildID       string
	ChannelID     string
	GuildName     string
	ChannelName   string
	AuthorID      string
	AuthorDisplay string
	AuthorIsBot   bool
	Content       string
	Attachments   []types.Attachment
	HasMentions   bool
	Reference     *Reference
	Timestamp     time.Time
}

// Reference carries the platform-native reply pointer. Resolved is set
// when the gateway already delivered the referenced message with the
// event.
type Reference struct {
	MessageID string
	ChannelID string
	GuildID   string
	Resolved  *Message
}

type MessageHandler func(msg Message)

// Gateway is the narrow seam to the chat-platform SDK. Implementations
// must honor the per-call timeout on the context.
type Gateway interface {
	Open() error
	Close() error
	BotUserID() string
	OnMessageCreate(handler MessageHandler)
	SendMessage(ctx context.Context, channelId, content string) (string, error)
	FetchMessage(ctx context.Context, channelId, messageId string) (*Message, error)
	NotifyAuthor(ctx context.Context, userId, content string) error
}

type FailureKind int

const (
	FailureTransient FailureKind = iota
	FailureRateLimited
	FailurePermanent
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailureRateLimited:
		return "rate_limited"
	case FailurePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// DeliveryError classifies a failed platform call so the fan-out
// engine can decide between retry and subscription teardown.
type DeliveryError struct {
	Kind       FailureKind
	RetryAfter time.Duration
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failure: %s", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Classify maps an arbitrary platform error onto a DeliveryError.
// Unknown errors default to transient so a retry budget still applies.
func Classify(err error) *DeliveryError {
	var derr *DeliveryError
	if errors.As(err, &derr) {
		return derr
	}

	return &DeliveryError{Kind: FailureTransient, Err: err}
}
