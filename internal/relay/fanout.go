package relay

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/platform"
	"github.com/npezzotti/chat-relay/internal/stats"
	"github.com/npezzotti/chat-relay/internal/types"
)

const targetQueueSize = 256

type FanoutResult struct {
	Delivered int
	Failed    int
}

// Engine delivers an accepted artifact to every target subscription.
// One worker per target channel keeps per-target FIFO order; a
// per-room semaphore caps parallel sends to protect the platform
// quota.
type Engine struct {
	log      *log.Logger
	gateway  platform.Gateway
	db       database.RelayRepository
	cache    cache.RelayCache
	stats    stats.StatsProvider
	retryMax int
	perRoom  int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[string]*targetWorker
	sems    map[int]chan struct{}

	pending sync.WaitGroup
	stopped atomic.Bool
}

type targetWorker struct {
	queue chan *delivery
}

type delivery struct {
	roomId  int
	target  database.Subscription
	content string
	agg     *aggregator
}

type aggregator struct {
	delivered atomic.Int32
	failed    atomic.Int32
	remaining atomic.Int32
	done      chan FanoutResult
}

func (a *aggregator) finish(ok bool) {
	if ok {
		a.delivered.Add(1)
	} else {
		a.failed.Add(1)
	}

	if a.remaining.Add(-1) == 0 {
		a.done <- FanoutResult{
			Delivered: int(a.delivered.Load()),
			Failed:    int(a.failed.Load()),
		}
	}
}

func NewEngine(logger *log.Logger, gw platform.Gateway, db database.RelayRepository,
	c cache.RelayCache, sp stats.StatsProvider, retryMax, perRoomConcurrency int) *Engine {

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		log:      logger,
		gateway:  gw,
		db:       db,
		cache:    c,
		stats:    sp,
		retryMax: retryMax,
		perRoom:  perRoomConcurrency,
		ctx:      ctx,
		cancel:   cancel,
		workers:  make(map[string]*targetWorker),
		sems:     make(map[int]chan struct{}),
	}
}

// Dispatch enqueues one delivery per target and returns a channel that
// yields the aggregate result once every target has been resolved.
func (e *Engine) Dispatch(art *Artifact) <-chan FanoutResult {
	done := make(chan FanoutResult, 1)

	if e.stopped.Load() || len(art.Targets) == 0 {
		done <- FanoutResult{}
		return done
	}

	agg := &aggregator{done: done}
	agg.remaining.Store(int32(len(art.Targets)))

	for _, target := range art.Targets {
		d := &delivery{
			roomId:  art.Room.Id,
			target:  target,
			content: art.Envelope,
			agg:     agg,
		}

		e.pending.Add(1)
		w := e.workerFor(target.GuildId, target.ChannelId)
		// a blocking send keeps enqueue order, which is the per-target
		// FIFO guarantee
		w.queue <- d
	}

	return done
}

func (e *Engine) workerFor(guildId, channelId string) *targetWorker {
	key := guildId + ":" + channelId

	e.mu.Lock()
	defer e.mu.Unlock()

	if w, ok := e.workers[key]; ok {
		return w
	}

	w := &targetWorker{queue: make(chan *delivery, targetQueueSize)}
	e.workers[key] = w

	go func() {
		for d := range w.queue {
			e.deliver(d)
			e.pending.Done()
		}
	}()

	return w
}

func (e *Engine) semForRoom(roomId int) chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	sem, ok := e.sems[roomId]
	if !ok {
		sem = make(chan struct{}, e.perRoom)
		e.sems[roomId] = sem
	}

	return sem
}

func (e *Engine) deliver(d *delivery) {
	sem := e.semForRoom(d.roomId)
	sem <- struct{}{}
	defer func() { <-sem }()

	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    8 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 1; ; attempt++ {
		_, err := e.gateway.SendMessage(e.ctx, d.target.ChannelId, d.content)
		if err == nil {
			e.stats.Incr(stats.DeliveriesOK)
			d.agg.finish(true)
			return
		}

		derr := platform.Classify(err)
		e.log.Printf("deliver to %s/%s attempt %d: %v",
			d.target.GuildId, d.target.ChannelId, attempt, derr)

		if derr.Kind == platform.FailurePermanent {
			e.retireTarget(d.target)
			break
		}

		if attempt >= e.retryMax {
			break
		}

		wait := b.Duration()
		if derr.Kind == platform.FailureRateLimited && derr.RetryAfter > wait {
			wait = derr.RetryAfter
		}

		select {
		case <-time.After(wait):
		case <-e.ctx.Done():
			e.stats.Incr(stats.DeliveriesFailed)
			d.agg.finish(false)
			return
		}
	}

	e.stats.Incr(stats.DeliveriesFailed)
	d.agg.finish(false)
}

// retireTarget deactivates a permanently undeliverable subscription
// and announces the change so dashboards and the resolver converge.
func (e *Engine) retireTarget(target database.Subscription) {
	e.log.Printf("retiring undeliverable channel %s/%s", target.GuildId, target.ChannelId)

	if err := e.db.DeactivateSubscription(target.GuildId, target.ChannelId); err != nil {
		e.log.Println("deactivate subscription:", err)
	}
	if err := e.cache.DropChannel(e.ctx, target.GuildId, target.ChannelId); err != nil {
		e.log.Println("drop channel key:", err)
	}

	update := types.Subscription{
		RoomId:       target.RoomId,
		GuildId:      target.GuildId,
		ChannelId:    target.ChannelId,
		GuildName:    target.GuildName,
		ChannelName:  target.ChannelName,
		RegisteredBy: target.RegisteredBy,
		RegisteredAt: target.RegisteredAt,
		IsActive:     false,
	}
	if err := e.cache.Publish(e.ctx, cache.TopicChannelUpdate, update); err != nil {
		e.log.Println("publish channel_update:", err)
	}
}

// Shutdown stops accepting work and drains the queues until the
// context deadline, then aborts whatever is still in flight.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)

	drained := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}

	e.cancel()

	e.mu.Lock()
	for _, w := range e.workers {
		close(w.queue)
	}
	e.workers = make(map[string]*targetWorker)
	e.mu.Unlock()

	return err
}
