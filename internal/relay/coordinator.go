package relay

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/platform"
	"github.com/npezzotti/chat-relay/internal/stats"
	"github.com/npezzotti/chat-relay/internal/types"
)

// Coordinator drives the relay pipeline for every inbound platform
// event. All per-event state lives in the Artifact; the only shared
// mutable state is metric counters.
type Coordinator struct {
	log      *log.Logger
	resolver *Resolver
	limiter  *RateLimiter
	filter   *ContentFilter
	replies  *ReplyResolver
	fanout   *Engine
	logs     *database.LogWriter
	db       database.RelayRepository
	cache    cache.RelayCache
	gateway  platform.Gateway
	stats    stats.StatsProvider

	wg      sync.WaitGroup
	stopped atomic.Bool

	unsub func() error
}

func NewCoordinator(logger *log.Logger, resolver *Resolver, limiter *RateLimiter,
	filter *ContentFilter, replies *ReplyResolver, fanout *Engine,
	logs *database.LogWriter, db database.RelayRepository, c cache.RelayCache,
	gw platform.Gateway, sp stats.StatsProvider) *Coordinator {

	return &Coordinator{
		log:      logger,
		resolver: resolver,
		limiter:  limiter,
		filter:   filter,
		replies:  replies,
		fanout:   fanout,
		logs:     logs,
		db:       db,
		cache:    c,
		gateway:  gw,
		stats:    sp,
	}
}

// Run hooks the coordinator into the gateway and starts the
// invalidation listener. Each event is handled on its own goroutine so
// the platform callback never blocks.
func (c *Coordinator) Run(ctx context.Context) {
	c.gateway.OnMessageCreate(func(msg platform.Message) {
		if c.stopped.Load() {
			return
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.process(ctx, msg)
		}()
	})

	events, unsub := c.cache.Subscribe(ctx, cache.TopicInvalidate)
	c.unsub = unsub

	go func() {
		for ev := range events {
			inv, err := cache.DecodeInvalidation(ev.Payload)
			if err != nil {
				c.log.Println("decode invalidation:", err)
				continue
			}

			c.stats.Incr(stats.InvalidationsSeen)
			c.resolver.HandleInvalidation(ctx, inv)
		}
	}()
}

func (c *Coordinator) process(ctx context.Context, msg platform.Message) {
	if msg.AuthorIsBot {
		return
	}

	c.stats.Incr(stats.MessagesReceived)

	snap, err := c.resolver.Resolve(ctx, msg.GuildID, msg.ChannelID)
	if err != nil {
		var perr *PolicyError
		if errors.As(err, &perr) {
			// routing rejections are silent: the channel simply is not
			// part of a room, or its guild is shut out
			c.stats.Incr(stats.MessagesRejected)
			return
		}

		c.log.Println("resolve:", err)
		return
	}

	if perr := c.limiter.Check(ctx, snap.Room.Id, msg.AuthorID, snap.Perms.RateLimitSeconds); perr != nil {
		c.reject(ctx, msg, perr)
		return
	}

	if dup, err := c.cache.SeenDuplicate(ctx, snap.Room.Id, msg.AuthorID, msg.Content); err != nil {
		c.log.Println("duplicate check:", err)
	} else if dup {
		c.reject(ctx, msg, ErrDuplicate)
		return
	}

	filtered, perr := c.filter.Apply(snap.Perms, FilterInput{
		Content:     msg.Content,
		Attachments: msg.Attachments,
		HasMentions: msg.HasMentions,
	})
	if perr != nil {
		c.reject(ctx, msg, perr)
		return
	}

	reply := c.replies.Resolve(ctx, msg, snap.Room.Id)

	art := &Artifact{
		Event:       msg,
		Room:        snap.Room,
		Perms:       snap.Perms,
		Content:     filtered.Content,
		Attachments: filtered.Attachments,
		Reply:       reply,
		ReceivedAt:  msg.Timestamp.UTC(),
	}
	if art.ReceivedAt.IsZero() {
		art.ReceivedAt = time.Now().UTC()
	}

	art.Envelope = FormatEnvelope(EnvelopeData{
		AuthorDisplay: msg.AuthorDisplay,
		Body:          art.Content,
		Permalink:     Permalink(msg.GuildID, msg.ChannelID, msg.ID),
		GuildName:     msg.GuildName,
		Attachments:   art.Attachments,
		Reply:         art.Reply,
	}, 0)

	targets, err := c.selectTargets(ctx, snap.Room.Id, msg.GuildID, msg.ChannelID)
	if err != nil {
		c.log.Println("select targets:", err)
		return
	}
	art.Targets = targets

	if err := c.db.TouchSubscription(msg.GuildID, msg.ChannelID, art.ReceivedAt); err != nil {
		c.log.Println("touch subscription:", err)
	}

	resultCh := c.fanout.Dispatch(art)

	// completion is asynchronous: log and publish once every target is
	// accounted for, without holding up the next inbound event
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := <-resultCh
		c.finish(ctx, art, res)
	}()
}

// selectTargets is the room's active subscription set minus the source
// channel and any banned guilds.
func (c *Coordinator) selectTargets(ctx context.Context, roomId int, sourceGuildId, sourceChannelId string) ([]database.Subscription, error) {
	subs, err := c.db.ListRoomChannels(roomId, true)
	if err != nil {
		return nil, err
	}

	banned := make(map[string]bool)
	targets := make([]database.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.GuildId == sourceGuildId && sub.ChannelId == sourceChannelId {
			continue
		}

		verdict, ok := banned[sub.GuildId]
		if !ok {
			verdict, err = c.resolver.GuildBanned(ctx, sub.GuildId)
			if err != nil {
				c.log.Println("target ban check:", err)
				verdict = false
			}
			banned[sub.GuildId] = verdict
		}
		if verdict {
			continue
		}

		targets = append(targets, sub)
	}

	return targets, nil
}

func (c *Coordinator) finish(ctx context.Context, art *Artifact, res FanoutResult) {
	c.stats.Incr(stats.MessagesRelayed)

	entry := art.LogEntry(res.Delivered, res.Failed)
	c.logs.Append(entry)

	payload := types.MessageLogEntry{
		RoomId:          entry.RoomId,
		SourceGuildId:   entry.SourceGuildId,
		SourceChannelId: entry.SourceChannelId,
		SourceMessageId: entry.SourceMessageId,
		AuthorId:        entry.AuthorId,
		AuthorDisplay:   entry.AuthorDisplay,
		Content:         entry.Content,
		ReplyTo:         art.Reply,
		Timestamp:       entry.Timestamp,
		DeliveredCount:  res.Delivered,
		FailedCount:     res.Failed,
	}
	if err := c.cache.Publish(ctx, cache.TopicNewMessage, payload); err != nil {
		c.log.Println("publish new_message:", err)
	}
}

// reject drops the message and sends the author at most one ephemeral
// notice per failure kind per minute.
func (c *Coordinator) reject(ctx context.Context, msg platform.Message, perr *PolicyError) {
	c.stats.Incr(stats.MessagesRejected)

	text := noticeText(perr.Reason, perr.RetryAfter)
	if text == "" {
		return
	}

	allowed, err := c.cache.NoticeAllowed(ctx, msg.AuthorID, string(perr.Reason))
	if err != nil {
		c.log.Println("notice throttle:", err)
		return
	}
	if !allowed {
		return
	}

	if err := c.gateway.NotifyAuthor(ctx, msg.AuthorID, text); err != nil {
		c.log.Println("notify author:", err)
		return
	}

	c.stats.Incr(stats.NoticesSent)
}

// Shutdown stops accepting events, waits for in-flight pipelines,
// drains fan-out, and flushes the log writer.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.stopped.Store(true)

	if c.unsub != nil {
		if err := c.unsub(); err != nil {
			c.log.Println("unsubscribe:", err)
		}
	}

	fanoutErr := c.fanout.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.logs.Stop()

	return fanoutErr
}
