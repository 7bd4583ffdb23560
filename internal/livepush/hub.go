package livepush

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/stats"
)

const statsPushInterval = 5 * time.Second

// Hub multiplexes dashboard connections: pub/sub events and periodic
// live-stats snapshots fan out to every authenticated client. Missed
// pushes are not replayed; dashboards reconcile over REST on
// reconnect.
type Hub struct {
	log            *log.Logger
	cache          cache.RelayCache
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Frame
	clients    map[*Client]struct{}

	stop chan struct{}
	done chan struct{}
}

func NewHub(logger *log.Logger, c cache.RelayCache, sp stats.StatsProvider,
	signingKey []byte, allowedOrigins []string) *Hub {

	return &Hub{
		log:            logger,
		cache:          c,
		stats:          sp,
		signingKey:     signingKey,
		allowedOrigins: allowedOrigins,
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *Frame, 64),
		clients:        make(map[*Client]struct{}),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	events, unsub := h.cache.Subscribe(ctx,
		cache.TopicNewMessage,
		cache.TopicSystemNotification,
		cache.TopicRoomUpdate,
		cache.TopicChannelUpdate,
	)
	defer unsub()

	ticker := time.NewTicker(statsPushInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.log.Println("push client connected")
			h.clients[client] = struct{}{}
			h.stats.Incr(stats.PushClients)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.log.Println("push client disconnected")
				delete(h.clients, client)
				h.stats.Decr(stats.PushClients)
			}
		case frame := <-h.broadcast:
			h.broadcastFrame(frame)
		case ev, ok := <-events:
			if !ok {
				h.log.Println("pubsub channel closed")
				continue
			}
			h.broadcastFrame(rawFrame(frameTypeForTopic(ev.Topic), ev.Payload))
		case <-ticker.C:
			h.pushLiveStats(ctx)
		case <-h.stop:
			for client := range h.clients {
				client.stopClient()
			}
			close(h.done)
			return
		}
	}
}

// frame type names deliberately match the pub/sub topic names
func frameTypeForTopic(topic string) string {
	return topic
}

func (h *Hub) broadcastFrame(frame *Frame) {
	for client := range h.clients {
		if !client.authenticated.Load() {
			continue
		}

		client.queueFrame(frame)
	}
}

func (h *Hub) pushLiveStats(ctx context.Context) {
	if len(h.clients) == 0 {
		return
	}

	liveStats, err := h.cache.GetLiveStats(ctx)
	if err != nil {
		h.log.Println("live stats lookup:", err)
		return
	}
	if liveStats == nil {
		return
	}

	frame, err := NewFrame(FrameLiveStats, liveStats)
	if err != nil {
		h.log.Println("build live_stats frame:", err)
		return
	}

	h.broadcastFrame(frame)
}

// Broadcast queues a server-initiated frame for all authenticated
// clients.
func (h *Hub) Broadcast(frameType string, data any) {
	frame, err := NewFrame(frameType, data)
	if err != nil {
		h.log.Println("build frame:", err)
		return
	}

	select {
	case h.broadcast <- frame:
	default:
		h.log.Println("broadcast channel full, dropping frame")
	}
}

// authenticate validates the handshake token: good signature plus a
// live session record in the cache.
func (h *Hub) authenticate(token string) (*cache.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := h.cache.GetSession(ctx, cache.HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if session == nil || time.Now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("no live session")
	}

	return session, nil
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(h.allowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Println("error upgrading connection:", err)
		return
	}

	client := NewClient(conn, h, h.log)
	h.register <- client

	go client.Write()
	go client.Read()
}

func (h *Hub) Shutdown() {
	close(h.stop)
	<-h.done
}
