package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/npezzotti/chat-relay/internal/types"
)

const tombstoneValue = "none"

type RedisCache struct {
	log *log.Logger
	rdb *redis.Client
}

func NewRedisCache(logger *log.Logger, url string, poolMax int) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse cache url: %w", err)
	}
	opt.PoolSize = poolMax

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("cache ping: %w", err)
	}

	return &RedisCache{log: logger, rdb: rdb}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisCache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}

	return true, nil
}

func (c *RedisCache) GetRoom(ctx context.Context, roomId int) (*types.Room, error) {
	var room types.Room
	ok, err := c.getJSON(ctx, roomKey(roomId), &room)
	if err != nil || !ok {
		return nil, err
	}

	return &room, nil
}

func (c *RedisCache) SetRoom(ctx context.Context, room types.Room) error {
	return c.setJSON(ctx, roomKey(room.Id), room, TTLRoom)
}

func (c *RedisCache) DropRoom(ctx context.Context, roomId int) error {
	return c.rdb.Del(ctx, roomKey(roomId)).Err()
}

func (c *RedisCache) GetPermissions(ctx context.Context, roomId int) (*types.RoomPermissions, error) {
	var perms types.RoomPermissions
	ok, err := c.getJSON(ctx, permsKey(roomId), &perms)
	if err != nil || !ok {
		return nil, err
	}

	return &perms, nil
}

func (c *RedisCache) SetPermissions(ctx context.Context, perms types.RoomPermissions) error {
	return c.setJSON(ctx, permsKey(perms.RoomId), perms, TTLPermissions)
}

func (c *RedisCache) DropPermissions(ctx context.Context, roomId int) error {
	return c.rdb.Del(ctx, permsKey(roomId)).Err()
}

func (c *RedisCache) GetChannelRoom(ctx context.Context, guildId, channelId string) (int, bool, bool, error) {
	val, err := c.rdb.Get(ctx, channelKey(guildId, channelId)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}

	if val == tombstoneValue {
		return 0, true, true, nil
	}

	roomId, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, false, fmt.Errorf("corrupt channel key %s:%s: %w", guildId, channelId, err)
	}

	return roomId, false, true, nil
}

func (c *RedisCache) SetChannelRoom(ctx context.Context, guildId, channelId string, roomId int) error {
	return c.rdb.Set(ctx, channelKey(guildId, channelId), strconv.Itoa(roomId), TTLChannel).Err()
}

func (c *RedisCache) SetChannelTombstone(ctx context.Context, guildId, channelId string) error {
	return c.rdb.Set(ctx, channelKey(guildId, channelId), tombstoneValue, TTLTombstone).Err()
}

func (c *RedisCache) DropChannel(ctx context.Context, guildId, channelId string) error {
	return c.rdb.Del(ctx, channelKey(guildId, channelId)).Err()
}

func (c *RedisCache) GetBanVerdict(ctx context.Context, guildId string) (*bool, error) {
	val, err := c.rdb.Get(ctx, banKey(guildId)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	banned := val == "1"
	return &banned, nil
}

func (c *RedisCache) SetBanVerdict(ctx context.Context, guildId string, banned bool) error {
	val := "0"
	if banned {
		val = "1"
	}

	return c.rdb.Set(ctx, banKey(guildId), val, TTLBanVerdict).Err()
}

func (c *RedisCache) DropBanVerdict(ctx context.Context, guildId string) error {
	return c.rdb.Del(ctx, banKey(guildId)).Err()
}

func (c *RedisCache) IncrRate(ctx context.Context, roomId int, userId string, window time.Duration) (int64, time.Duration, error) {
	key := rateKey(roomId, userId)

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	retryAfter := ttl.Val()
	if retryAfter < 0 {
		retryAfter = window
	}

	return incr.Val(), retryAfter, nil
}

func (c *RedisCache) SeenDuplicate(ctx context.Context, roomId int, userId, content string) (bool, error) {
	key := dupKey(roomId, userId)
	hash := contentHash(content)

	prev, err := c.rdb.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}

	if err := c.rdb.Set(ctx, key, hash, TTLDuplicate).Err(); err != nil {
		return false, err
	}

	return prev == hash, nil
}

func (c *RedisCache) NoticeAllowed(ctx context.Context, userId, kind string) (bool, error) {
	return c.rdb.SetNX(ctx, noticeKey(userId, kind), "1", TTLNotice).Result()
}

func (c *RedisCache) AllowRequest(ctx context.Context, userId string, limit int, window time.Duration) (bool, error) {
	key := reqRateKey(userId)

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return incr.Val() <= int64(limit), nil
}

func (c *RedisCache) StoreSession(ctx context.Context, tokenHash string, s Session, ttl time.Duration) error {
	return c.setJSON(ctx, sessionKey(tokenHash), s, ttl)
}

func (c *RedisCache) GetSession(ctx context.Context, tokenHash string) (*Session, error) {
	var s Session
	ok, err := c.getJSON(ctx, sessionKey(tokenHash), &s)
	if err != nil || !ok {
		return nil, err
	}

	return &s, nil
}

func (c *RedisCache) DeleteSession(ctx context.Context, tokenHash string) error {
	return c.rdb.Del(ctx, sessionKey(tokenHash)).Err()
}

func (c *RedisCache) GetLiveStats(ctx context.Context) (*types.LiveStats, error) {
	var stats types.LiveStats
	ok, err := c.getJSON(ctx, liveStatsKey, &stats)
	if err != nil || !ok {
		return nil, err
	}

	return &stats, nil
}

func (c *RedisCache) SetLiveStats(ctx context.Context, stats types.LiveStats) error {
	return c.setJSON(ctx, liveStatsKey, stats, TTLLiveStats)
}

func (c *RedisCache) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}

	return c.rdb.Publish(ctx, topic, data).Err()
}

// Subscribe fans messages from the given topics into a single channel.
// The returned func closes the subscription and the channel.
func (c *RedisCache) Subscribe(ctx context.Context, topics ...string) (<-chan Event, func() error) {
	ps := c.rdb.Subscribe(ctx, topics...)
	out := make(chan Event, 64)

	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- Event{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
			default:
				c.log.Println("pubsub consumer lagging, dropping event on", msg.Channel)
			}
		}
	}()

	return out, ps.Close
}
