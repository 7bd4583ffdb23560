package relay

import (
	"context"
	"sync"
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

func testArtifact(envelope string, targets ...database.Subscription) *Artifact {
	return &Artifact{
		Room:     types.Room{Id: 1, Name: "general"},
		Envelope: envelope,
		Targets:  targets,
	}
}

func target(guildId, channelId string) database.Subscription {
	return database.Subscription{RoomId: 1, GuildId: guildId, ChannelId: channelId, IsActive: true}
}

func waitResult(t *testing.T, ch <-chan FanoutResult) FanoutResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for fanout result")
		return FanoutResult{}
	}
}

func TestDispatchDeliversToAllTargets(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}
	defer mockGw.AssertExpectations(t)

	mockGw.On("SendMessage", mock.Anything, "b1", "envelope").Return("m1", nil).Once()
	mockGw.On("SendMessage", mock.Anything, "c1", "envelope").Return("m2", nil).Once()

	e := NewEngine(testutil.TestLogger(t), mockGw, mockRepo, mockCache, stats.NullStats{}, 3, 32)
	defer e.Shutdown(context.Background())

	res := waitResult(t, e.Dispatch(testArtifact("envelope", target("gb", "b1"), target("gc", "c1"))))

	assert.Equal(t, 2, res.Delivered, "expected both targets delivered")
	assert.Equal(t, 0, res.Failed, "expected no failures")
}

func TestDispatchNoTargets(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}

	e := NewEngine(testutil.TestLogger(t), mockGw, mockRepo, mockCache, stats.NullStats{}, 3, 32)
	defer e.Shutdown(context.Background())

	res := waitResult(t, e.Dispatch(testArtifact("envelope")))

	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, 0, res.Failed)
	mockGw.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestPerTargetFIFO(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}

	var (
		sentLock sync.Mutex
		sent     []string
	)
	mockGw.On("SendMessage", mock.Anything, "b1", mock.Anything).
		Run(func(args mock.Arguments) {
			sentLock.Lock()
			defer sentLock.Unlock()
			sent = append(sent, args.String(2))
		}).Return("id", nil)

	e := NewEngine(testutil.TestLogger(t), mockGw, mockRepo, mockCache, stats.NullStats{}, 3, 32)
	defer e.Shutdown(context.Background())

	first := e.Dispatch(testArtifact("m1", target("gb", "b1")))
	second := e.Dispatch(testArtifact("m2", target("gb", "b1")))
	third := e.Dispatch(testArtifact("m3", target("gb", "b1")))

	waitResult(t, first)
	waitResult(t, second)
	waitResult(t, third)

	sentLock.Lock()
	defer sentLock.Unlock()
	assert.Equal(t, []string{"m1", "m2", "m3"}, sent, "expected per-target arrival order preserved")
}

func TestPermanentFailureRetiresTarget(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}
	defer mockGw.AssertExpectations(t)
	defer mockRepo.AssertExpectations(t)
	defer mockCache.AssertExpectations(t)

	permErr := &platform.DeliveryError{Kind: platform.FailurePermanent, Err: assert.AnError}
	mockGw.On("SendMessage", mock.Anything, "b1", "envelope").Return("", permErr).Once()
	mockRepo.On("DeactivateSubscription", "gb", "b1").Return(nil).Once()
	mockCache.On("DropChannel", mock.Anything, "gb", "b1").Return(nil).Once()
	mockCache.On("Publish", mock.Anything, cache.TopicChannelUpdate, mock.Anything).Return(nil).Once()

	e := NewEngine(testutil.TestLogger(t), mockGw, mockRepo, mockCache, stats.NullStats{}, 3, 32)
	defer e.Shutdown(context.Background())

	res := waitResult(t, e.Dispatch(testArtifact("envelope", target("gb", "b1"))))

	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, 1, res.Failed, "expected the permanent failure counted")
	mockGw.AssertNumberOfCalls(t, "SendMessage", 1)
}

func TestTransientFailureRetries(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}
	defer mockGw.AssertExpectations(t)

	transientErr := &platform.DeliveryError{Kind: platform.FailureTransient, Err: assert.AnError}
	mockGw.On("SendMessage", mock.Anything, "b1", "envelope").Return("", transientErr).Once()
	mockGw.On("SendMessage", mock.Anything, "b1", "envelope").Return("m1", nil).Once()

	e := NewEngine(testutil.TestLogger(t), mockGw, mockRepo, mockCache, stats.NullStats{}, 3, 32)
	defer e.Shutdown(context.Background())

	res := waitResult(t, e.Dispatch(testArtifact("envelope", target("gb", "b1"))))

	assert.Equal(t, 1, res.Delivered, "expected retry to succeed")
	assert.Equal(t, 0, res.Failed)
}

func TestRetryBudgetExhausted(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}
	defer mockGw.AssertExpectations(t)

	transientErr := &platform.DeliveryError{Kind: platform.FailureTransient, Err: assert.AnError}
	mockGw.On("SendMessage", mock.Anything, "b1", "envelope").Return("", transientErr).Times(2)

	e := NewEngine(testutil.TestLogger(t), mockGw, mockRepo, mockCache, stats.NullStats{}, 2, 32)
	defer e.Shutdown(context.Background())

	res := waitResult(t, e.Dispatch(testArtifact("envelope", target("gb", "b1"))))

	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, 1, res.Failed, "expected failure after the retry budget")
	mockGw.AssertNumberOfCalls(t, "SendMessage", 2)
}

func TestDispatchAfterShutdown(t *testing.T) {
	mockGw := &platform.MockGateway{}
	mockRepo := &database.MockRelayRepository{}
	mockCache := &cache.MockRelayCache{}

	e := NewEngine(testutil.TestLogger(t), mockGw, mockRepo, mockCache, stats.NullStats{}, 3, 32)
	assert.NoError(t, e.Shutdown(context.Background()))

	res := waitResult(t, e.Dispatch(testArtifact("envelope", target("gb", "b1"))))

	assert.Equal(t, 0, res.Delivered)
	mockGw.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}
