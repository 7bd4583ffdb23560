package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/platform"
	"github.com/npezzotti/chat-relay/internal/stats"
	"github.com/npezzotti/chat-relay/internal/testutil"
	"github.com/npezzotti/chat-relay/internal/types"
)

type coordinatorFixture struct {
	coordinator *Coordinator
	gateway     *platform.MockGateway
	repo        *database.MockRelayRepository
	cache       *cache.MockRelayCache
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	logger := testutil.TestLogger(t)
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}

	resolver := NewResolver(logger, mockCache, mockRepo)
	limiter := NewRateLimiter(logger, mockCache)
	filter := NewContentFilter(nil)
	replies := NewReplyResolver(logger, mockGw, mockRepo)
	fanout := NewEngine(logger, mockGw, mockRepo, mockCache, stats.NullStats{}, 3, 32)
	logs := database.NewLogWriter(logger, mockRepo)
	logs.Run()

	c := NewCoordinator(logger, resolver, limiter, filter, replies, fanout,
		logs, mockRepo, mockCache, mockGw, stats.NullStats{})

	return &coordinatorFixture{
		coordinator: c,
		gateway:     mockGw,
		repo:        mockRepo,
		cache:       mockCache,
	}
}

// routes g1/c-src into room 1 with the given permissions
func (f *coordinatorFixture) expectRoute(perms types.RoomPermissions) {
	f.cache.On("GetChannelRoom", mock.Anything, "g1", "c-src").Return(1, false, true, nil).Once()
	f.cache.On("GetRoom", mock.Anything, 1).
		Return(&types.Room{Id: 1, Name: "general", IsActive: true, MaxServers: 3}, nil).Once()
	f.cache.On("GetPermissions", mock.Anything, 1).Return(&perms, nil).Once()
	f.cache.On("GetBanVerdict", mock.Anything, "g1").Return(boolPtr(false), nil).Once()
}

func inboundMessage(content string) platform.Message {
	return platform.Message{
		ID:            "msg-1",
		GuildID:       "g1",
		ChannelID:     "c-src",
		GuildName:     "Guild One",
		ChannelName:   "general",
		AuthorID:      "author-1",
		AuthorDisplay: "alice",
		Content:       content,
		Timestamp:     time.Now().UTC(),
	}
}

func TestProcessRelaysToOtherChannels(t *testing.T) {
	f := newCoordinatorFixture(t)
	defer f.gateway.AssertExpectations(t)
	defer f.repo.AssertExpectations(t)

	f.expectRoute(types.RoomPermissions{RoomId: 1, AllowURLs: true, AllowMentions: true,
		AllowEmojis: true, MaxMessageLength: 2000})

	f.cache.On("SeenDuplicate", mock.Anything, 1, "author-1", "hi").Return(false, nil).Once()

	subs := []database.Subscription{
		{RoomId: 1, GuildId: "g1", ChannelId: "c-src", IsActive: true},
		{RoomId: 1, GuildId: "g2", ChannelId: "c-b1", IsActive: true},
		{RoomId: 1, GuildId: "g3", ChannelId: "c-c1", IsActive: true},
	}
	f.repo.On("ListRoomChannels", 1, true).Return(subs, nil).Once()
	f.cache.On("GetBanVerdict", mock.Anything, "g2").Return(boolPtr(false), nil).Once()
	f.cache.On("GetBanVerdict", mock.Anything, "g3").Return(boolPtr(false), nil).Once()
	f.repo.On("TouchSubscription", "g1", "c-src", mock.Anything).Return(nil).Once()

	envelopeMatcher := mock.MatchedBy(func(content string) bool {
		parsed, ok := ParseEnvelope(content)
		return ok && parsed.AuthorDisplay == "alice" && parsed.Body == "hi"
	})
	f.gateway.On("SendMessage", mock.Anything, "c-b1", envelopeMatcher).Return("s1", nil).Once()
	f.gateway.On("SendMessage", mock.Anything, "c-c1", envelopeMatcher).Return("s2", nil).Once()

	f.repo.On("AppendMessageLog", mock.MatchedBy(func(entry database.MessageLogEntry) bool {
		return entry.RoomId == 1 && entry.DeliveredCount == 2 && entry.FailedCount == 0 &&
			entry.AuthorDisplay == "alice" && entry.Content == "hi"
	})).Return(int64(1), nil).Once()
	f.cache.On("Publish", mock.Anything, cache.TopicNewMessage, mock.Anything).Return(nil).Once()

	f.coordinator.process(context.Background(), inboundMessage("hi"))

	// drain the async fan-out completion and the log writer
	assert.NoError(t, f.coordinator.Shutdown(context.Background()))

	// the source channel never receives a copy
	f.gateway.AssertNotCalled(t, "SendMessage", mock.Anything, "c-src", mock.Anything)
}

func TestProcessDropsRateLimited(t *testing.T) {
	f := newCoordinatorFixture(t)
	defer f.gateway.AssertExpectations(t)

	f.expectRoute(types.RoomPermissions{RoomId: 1, MaxMessageLength: 2000, RateLimitSeconds: 5})

	f.cache.On("IncrRate", mock.Anything, 1, "author-1", 5*time.Second).
		Return(int64(2), 3*time.Second, nil).Once()
	f.cache.On("NoticeAllowed", mock.Anything, "author-1", string(ReasonRateLimited)).
		Return(true, nil).Once()
	f.gateway.On("NotifyAuthor", mock.Anything, "author-1", mock.Anything).Return(nil).Once()

	f.coordinator.process(context.Background(), inboundMessage("two"))
	assert.NoError(t, f.coordinator.Shutdown(context.Background()))

	f.gateway.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDropsBannedGuildSilently(t *testing.T) {
	f := newCoordinatorFixture(t)

	f.cache.On("GetChannelRoom", mock.Anything, "g1", "c-src").Return(1, false, true, nil).Once()
	f.cache.On("GetRoom", mock.Anything, 1).
		Return(&types.Room{Id: 1, Name: "general", IsActive: true}, nil).Once()
	f.cache.On("GetPermissions", mock.Anything, 1).
		Return(&types.RoomPermissions{RoomId: 1, MaxMessageLength: 2000}, nil).Once()
	f.cache.On("GetBanVerdict", mock.Anything, "g1").Return(boolPtr(true), nil).Once()

	f.coordinator.process(context.Background(), inboundMessage("hi"))
	assert.NoError(t, f.coordinator.Shutdown(context.Background()))

	f.gateway.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "NotifyAuthor", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessRejectedContentNotifiesAuthor(t *testing.T) {
	f := newCoordinatorFixture(t)
	defer f.gateway.AssertExpectations(t)

	f.expectRoute(types.RoomPermissions{RoomId: 1, AllowURLs: false, MaxMessageLength: 2000})

	f.cache.On("SeenDuplicate", mock.Anything, 1, "author-1", mock.Anything).Return(false, nil).Once()
	f.cache.On("NoticeAllowed", mock.Anything, "author-1", string(ReasonUrlsDisallowed)).
		Return(true, nil).Once()
	f.gateway.On("NotifyAuthor", mock.Anything, "author-1", mock.Anything).Return(nil).Once()

	f.coordinator.process(context.Background(), inboundMessage("check https://example.com"))
	assert.NoError(t, f.coordinator.Shutdown(context.Background()))

	f.gateway.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessNoticeThrottled(t *testing.T) {
	f := newCoordinatorFixture(t)

	f.expectRoute(types.RoomPermissions{RoomId: 1, AllowURLs: false, MaxMessageLength: 2000})

	f.cache.On("SeenDuplicate", mock.Anything, 1, "author-1", mock.Anything).Return(false, nil).Once()
	f.cache.On("NoticeAllowed", mock.Anything, "author-1", string(ReasonUrlsDisallowed)).
		Return(false, nil).Once()

	f.coordinator.process(context.Background(), inboundMessage("check https://example.com"))
	assert.NoError(t, f.coordinator.Shutdown(context.Background()))

	// a throttled notice means no DM at all
	f.gateway.AssertNotCalled(t, "NotifyAuthor", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessIgnoresBotAuthors(t *testing.T) {
	f := newCoordinatorFixture(t)

	msg := inboundMessage("hi")
	msg.AuthorIsBot = true

	f.coordinator.process(context.Background(), msg)
	assert.NoError(t, f.coordinator.Shutdown(context.Background()))

	f.cache.AssertNotCalled(t, "GetChannelRoom", mock.Anything, mock.Anything, mock.Anything)
}
