package relay

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/types"
)

// Snapshot is the resolver's by-value view of a routed message's room
// and permissions. Later store mutations do not affect in-flight
// relays.
type Snapshot struct {
	Room  types.Room
	Perms types.RoomPermissions
}

type Resolver struct {
	log   *log.Logger
	cache cache.RelayCache
	db    database.RelayRepository
}

func NewResolver(logger *log.Logger, c cache.RelayCache, db database.RelayRepository) *Resolver {
	return &Resolver{log: logger, cache: c, db: db}
}

// Resolve maps (guild, channel) to a coherent room+permissions
// snapshot, probing the cache first and falling back to the store.
// Policy outcomes are returned as *PolicyError.
func (r *Resolver) Resolve(ctx context.Context, guildId, channelId string) (Snapshot, error) {
	roomId, err := r.resolveChannel(ctx, guildId, channelId)
	if err != nil {
		return Snapshot{}, err
	}

	room, err := r.resolveRoom(ctx, roomId)
	if err != nil {
		return Snapshot{}, err
	}
	if !room.IsActive {
		return Snapshot{}, ErrRoomInactive
	}

	perms, err := r.resolvePermissions(ctx, roomId)
	if err != nil {
		return Snapshot{}, err
	}

	banned, err := r.GuildBanned(ctx, guildId)
	if err != nil {
		return Snapshot{}, err
	}
	if banned {
		return Snapshot{}, ErrGuildBanned
	}

	return Snapshot{Room: room, Perms: perms}, nil
}

func (r *Resolver) resolveChannel(ctx context.Context, guildId, channelId string) (int, error) {
	roomId, tombstone, hit, err := r.cache.GetChannelRoom(ctx, guildId, channelId)
	if err != nil {
		r.log.Println("cache channel lookup:", err)
	}
	if hit {
		if tombstone {
			return 0, ErrNotSubscribed
		}
		return roomId, nil
	}

	sub, err := r.db.GetSubscription(guildId, channelId)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !sub.IsActive) {
		if cerr := r.cache.SetChannelTombstone(ctx, guildId, channelId); cerr != nil {
			r.log.Println("cache tombstone:", cerr)
		}
		return 0, ErrNotSubscribed
	}
	if err != nil {
		return 0, fmt.Errorf("get subscription: %w", err)
	}

	if cerr := r.cache.SetChannelRoom(ctx, guildId, channelId, sub.RoomId); cerr != nil {
		r.log.Println("cache channel set:", cerr)
	}

	return sub.RoomId, nil
}

func (r *Resolver) resolveRoom(ctx context.Context, roomId int) (types.Room, error) {
	if room, err := r.cache.GetRoom(ctx, roomId); err != nil {
		r.log.Println("cache room lookup:", err)
	} else if room != nil {
		return *room, nil
	}

	dbRoom, err := r.db.GetRoom(roomId)
	if errors.Is(err, database.ErrNotFound) {
		return types.Room{}, ErrNotSubscribed
	}
	if err != nil {
		return types.Room{}, fmt.Errorf("get room: %w", err)
	}

	room := types.Room{
		Id:         dbRoom.Id,
		Name:       dbRoom.Name,
		CreatedBy:  dbRoom.CreatedBy,
		CreatedAt:  dbRoom.CreatedAt,
		MaxServers: dbRoom.MaxServers,
		IsActive:   dbRoom.IsActive,
	}

	if cerr := r.cache.SetRoom(ctx, room); cerr != nil {
		r.log.Println("cache room set:", cerr)
	}

	return room, nil
}

func (r *Resolver) resolvePermissions(ctx context.Context, roomId int) (types.RoomPermissions, error) {
	if perms, err := r.cache.GetPermissions(ctx, roomId); err != nil {
		r.log.Println("cache perms lookup:", err)
	} else if perms != nil {
		return *perms, nil
	}

	dbPerms, err := r.db.GetPermissions(roomId)
	if err != nil {
		return types.RoomPermissions{}, fmt.Errorf("get permissions: %w", err)
	}

	perms := types.RoomPermissions{
		RoomId:              dbPerms.RoomId,
		AllowURLs:           dbPerms.AllowURLs,
		AllowFiles:          dbPerms.AllowFiles,
		AllowMentions:       dbPerms.AllowMentions,
		AllowEmojis:         dbPerms.AllowEmojis,
		EnableBadWordFilter: dbPerms.EnableBadWordFilter,
		MaxMessageLength:    dbPerms.MaxMessageLength,
		RateLimitSeconds:    dbPerms.RateLimitSeconds,
	}

	if cerr := r.cache.SetPermissions(ctx, perms); cerr != nil {
		r.log.Println("cache perms set:", cerr)
	}

	return perms, nil
}

// GuildBanned checks the cached ban verdict, falling back to the
// store. Also used by fan-out target selection.
func (r *Resolver) GuildBanned(ctx context.Context, guildId string) (bool, error) {
	if verdict, err := r.cache.GetBanVerdict(ctx, guildId); err != nil {
		r.log.Println("cache ban lookup:", err)
	} else if verdict != nil {
		return *verdict, nil
	}

	var banned bool
	_, err := r.db.GetActiveBan(guildId)
	switch {
	case err == nil:
		banned = true
	case errors.Is(err, database.ErrNotFound):
		banned = false
	default:
		return false, fmt.Errorf("get ban: %w", err)
	}

	if cerr := r.cache.SetBanVerdict(ctx, guildId, banned); cerr != nil {
		r.log.Println("cache ban set:", cerr)
	}

	return banned, nil
}

// HandleInvalidation drops the cache keys an admin write touched.
// Idempotent: a second identical event finds nothing left to drop.
func (r *Resolver) HandleInvalidation(ctx context.Context, inv cache.Invalidation) {
	var err error
	switch inv.Kind {
	case cache.InvalidateRoom:
		err = r.cache.DropRoom(ctx, inv.RoomId)
		if err == nil {
			err = r.cache.DropPermissions(ctx, inv.RoomId)
		}
	case cache.InvalidatePermissions:
		err = r.cache.DropPermissions(ctx, inv.RoomId)
	case cache.InvalidateChannel:
		err = r.cache.DropChannel(ctx, inv.GuildId, inv.ChannelId)
	case cache.InvalidateBan:
		err = r.cache.DropBanVerdict(ctx, inv.GuildId)
	default:
		r.log.Printf("unknown invalidation kind %q", inv.Kind)
		return
	}

	if err != nil {
		r.log.Printf("invalidate %s: %v", inv.Kind, err)
	}
}
