package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/platform"
	"github.com/npezzotti/chat-relay/internal/testutil"
	"github.com/npezzotti/chat-relay/internal/types"
)

func replyMessage(refId string, resolved *platform.Message) platform.Message {
	return platform.Message{
		ID:        "msg-2",
		GuildID:   "g2",
		ChannelID: "c-b1",
		AuthorID:  "author-2",
		Content:   "replying",
		Reference: &platform.Reference{
			MessageID: refId,
			ChannelID: "c-b1",
			Resolved:  resolved,
		},
	}
}

func TestReplyResolveNotAReply(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}

	rr := NewReplyResolver(testutil.TestLogger(t), mockGw, mockRepo)
	ctx := rr.Resolve(context.Background(), platform.Message{ID: "m", Content: "plain"}, 1)

	assert.Nil(t, ctx, "expected no reply context for a plain message")
}

func TestReplyResolveFromMessageLog(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetLoggedMessage", 1, "ref-1").Return(database.MessageLogEntry{
		AuthorDisplay: "alice",
		Content:       "hi",
	}, nil).Once()

	rr := NewReplyResolver(testutil.TestLogger(t), mockGw, mockRepo)
	rctx := rr.Resolve(context.Background(), replyMessage("ref-1", nil), 1)

	assert.NotNil(t, rctx)
	assert.Equal(t, "alice", rctx.AuthorDisplay)
	assert.Equal(t, "hi", rctx.QuotedText)
	assert.Equal(t, OriginRelayed, rctx.OriginKind)
	mockGw.AssertNotCalled(t, "FetchMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestReplyResolveNativeResolved(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetLoggedMessage", 1, "ref-2").
		Return(database.MessageLogEntry{}, database.ErrNotFound).Once()

	resolved := &platform.Message{
		ID:            "ref-2",
		AuthorID:      "author-9",
		AuthorDisplay: "bob",
		Content:       "original text",
	}

	rr := NewReplyResolver(testutil.TestLogger(t), mockGw, mockRepo)
	rctx := rr.Resolve(context.Background(), replyMessage("ref-2", resolved), 1)

	assert.NotNil(t, rctx)
	assert.Equal(t, "bob", rctx.AuthorDisplay)
	assert.Equal(t, "original text", rctx.QuotedText)
	assert.Equal(t, OriginNative, rctx.OriginKind)
}

func TestReplyResolveRelayedEnvelope(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	defer mockGw.AssertExpectations(t)
	defer mockRepo.AssertExpectations(t)

	envelope := FormatEnvelope(EnvelopeData{
		AuthorDisplay: "alice",
		Body:          "hi",
		Permalink:     Permalink("1", "2", "3"),
		GuildName:     "Guild A",
	}, 0)

	mockRepo.On("GetLoggedMessage", 1, "ref-3").
		Return(database.MessageLogEntry{}, database.ErrNotFound).Once()
	mockGw.On("FetchMessage", mock.Anything, "c-b1", "ref-3").Return(&platform.Message{
		ID:            "ref-3",
		AuthorID:      "bot-1",
		AuthorDisplay: "relay",
		AuthorIsBot:   true,
		Content:       envelope,
	}, nil).Once()
	mockGw.On("BotUserID").Return("bot-1").Once()

	rr := NewReplyResolver(testutil.TestLogger(t), mockGw, mockRepo)
	rctx := rr.Resolve(context.Background(), replyMessage("ref-3", nil), 1)

	assert.NotNil(t, rctx)
	assert.Equal(t, "alice", rctx.AuthorDisplay, "expected the envelope's original author")
	assert.Equal(t, "hi", rctx.QuotedText)
	assert.Equal(t, OriginRelayed, rctx.OriginKind)
}

func TestReplyResolveNestedDepthCapped(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	defer mockGw.AssertExpectations(t)
	defer mockRepo.AssertExpectations(t)

	// an envelope that itself carries a reply header: only the
	// innermost author surfaces
	envelope := FormatEnvelope(EnvelopeData{
		AuthorDisplay: "bob",
		Body:          "agreed!",
		Permalink:     Permalink("1", "2", "4"),
		GuildName:     "Guild B",
		Reply: &types.ReplyContext{
			AuthorDisplay: "alice",
			QuotedText:    "hi",
			OriginKind:    OriginRelayed,
		},
	}, 0)

	mockRepo.On("GetLoggedMessage", 1, "ref-4").
		Return(database.MessageLogEntry{}, database.ErrNotFound).Once()
	mockGw.On("FetchMessage", mock.Anything, "c-b1", "ref-4").Return(&platform.Message{
		ID:          "ref-4",
		AuthorID:    "bot-1",
		AuthorIsBot: true,
		Content:     envelope,
	}, nil).Once()
	mockGw.On("BotUserID").Return("bot-1").Once()

	rr := NewReplyResolver(testutil.TestLogger(t), mockGw, mockRepo)
	rctx := rr.Resolve(context.Background(), replyMessage("ref-4", nil), 1)

	assert.NotNil(t, rctx)
	assert.Equal(t, "bob", rctx.AuthorDisplay, "expected the innermost author, not alice")
	assert.Equal(t, "agreed!", rctx.QuotedText)
	assert.Equal(t, OriginRelayedNested, rctx.OriginKind)
}

func TestReplyResolveFetchFailure(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	defer mockGw.AssertExpectations(t)
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetLoggedMessage", 1, "ref-5").
		Return(database.MessageLogEntry{}, database.ErrNotFound).Once()
	mockGw.On("FetchMessage", mock.Anything, "c-b1", "ref-5").
		Return(nil, &platform.DeliveryError{Kind: platform.FailurePermanent, Err: assert.AnError}).Once()

	rr := NewReplyResolver(testutil.TestLogger(t), mockGw, mockRepo)
	rctx := rr.Resolve(context.Background(), replyMessage("ref-5", nil), 1)

	assert.NotNil(t, rctx, "expected a placeholder context")
	assert.Equal(t, "Unknown User", rctx.AuthorDisplay)
}

func TestReplyResolveAttachmentOnly(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetLoggedMessage", 1, "ref-6").
		Return(database.MessageLogEntry{}, database.ErrNotFound).Once()

	resolved := &platform.Message{
		ID:            "ref-6",
		AuthorDisplay: "carol",
		Attachments:   []types.Attachment{{Filename: "cat.png", URL: "u"}},
	}

	rr := NewReplyResolver(testutil.TestLogger(t), mockGw, mockRepo)
	rctx := rr.Resolve(context.Background(), replyMessage("ref-6", resolved), 1)

	assert.NotNil(t, rctx)
	assert.Equal(t, "[attachment: cat.png]", rctx.QuotedText)
}
