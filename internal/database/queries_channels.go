package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const channelColumns = "id, room_id, guild_id, channel_id, guild_name, channel_name, " +
	"registered_by, registered_at, is_active, last_message_at"

func scanSubscription(row interface{ Scan(...any) error }) (Subscription, error) {
	var (
		sub           Subscription
		lastMessageAt sql.NullTime
	)
	err := row.Scan(
		&sub.Id,
		&sub.RoomId,
		&sub.GuildId,
		&sub.ChannelId,
		&sub.GuildName,
		&sub.ChannelName,
		&sub.RegisteredBy,
		&sub.RegisteredAt,
		&sub.IsActive,
		&lastMessageAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if lastMessageAt.Valid {
		t := lastMessageAt.Time
		sub.LastMessageAt = &t
	}

	return sub, err
}

// RegisterChannel binds a channel to a room. The transaction is
// serializable: the room-capacity check and the insert must observe a
// consistent set of active bindings.
func (db *PgRelayRepository) RegisterChannel(params RegisterChannelParams) (Subscription, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Subscription{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec("SET TRANSACTION ISOLATION LEVEL SERIALIZABLE"); err != nil {
		return Subscription{}, err
	}

	var banned bool
	err = tx.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM guild_bans WHERE guild_id = $1 AND is_active)",
		params.GuildId,
	).Scan(&banned)
	if err != nil {
		return Subscription{}, err
	}
	if banned {
		err = ErrGuildBanned
		return Subscription{}, err
	}

	var roomActive bool
	var maxServers int
	err = tx.QueryRow(
		"SELECT is_active, max_servers FROM chat_rooms WHERE id = $1", params.RoomId,
	).Scan(&roomActive, &maxServers)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return Subscription{}, err
	}
	if err != nil {
		return Subscription{}, err
	}
	if !roomActive {
		err = ErrRoomInactive
		return Subscription{}, err
	}

	var existing int
	err = tx.QueryRow(
		"SELECT COUNT(*) FROM chat_channels WHERE guild_id = $1 AND channel_id = $2 AND is_active",
		params.GuildId, params.ChannelId,
	).Scan(&existing)
	if err != nil {
		return Subscription{}, err
	}
	if existing > 0 {
		err = ErrAlreadyBound
		return Subscription{}, err
	}

	var guilds int
	err = tx.QueryRow(
		"SELECT COUNT(DISTINCT guild_id) FROM chat_channels WHERE room_id = $1 AND is_active AND guild_id != $2",
		params.RoomId, params.GuildId,
	).Scan(&guilds)
	if err != nil {
		return Subscription{}, err
	}
	if guilds+1 > maxServers {
		err = ErrRoomFull
		return Subscription{}, err
	}

	// a previously deactivated binding for this channel is revived in
	// place so the (guild_id, channel_id) unique index holds
	row := tx.QueryRow(
		"INSERT INTO chat_channels (room_id, guild_id, channel_id, guild_name, channel_name, registered_by, registered_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) "+
			"ON CONFLICT (guild_id, channel_id) DO UPDATE SET "+
			"room_id = EXCLUDED.room_id, guild_name = EXCLUDED.guild_name, "+
			"channel_name = EXCLUDED.channel_name, registered_by = EXCLUDED.registered_by, "+
			"registered_at = EXCLUDED.registered_at, is_active = TRUE "+
			"RETURNING "+channelColumns,
		params.RoomId,
		params.GuildId,
		params.ChannelId,
		params.GuildName,
		params.ChannelName,
		params.RegisteredBy,
		time.Now().UTC(),
	)

	var sub Subscription
	sub, err = scanSubscription(row)
	if err != nil {
		return Subscription{}, err
	}

	if err = tx.Commit(); err != nil {
		return Subscription{}, err
	}

	return sub, nil
}

func (db *PgRelayRepository) UnregisterChannel(roomId int, guildId, channelId string) error {
	res, err := db.conn.Exec(
		"UPDATE chat_channels SET is_active = FALSE "+
			"WHERE room_id = $1 AND guild_id = $2 AND channel_id = $3 AND is_active",
		roomId, guildId, channelId,
	)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

// DeactivateSubscription retires a binding regardless of room, used by
// the fan-out engine when a target turns permanently undeliverable.
func (db *PgRelayRepository) DeactivateSubscription(guildId, channelId string) error {
	_, err := db.conn.Exec(
		"UPDATE chat_channels SET is_active = FALSE WHERE guild_id = $1 AND channel_id = $2",
		guildId, channelId,
	)

	return err
}

func (db *PgRelayRepository) GetSubscription(guildId, channelId string) (Subscription, error) {
	row := db.conn.QueryRow(
		"SELECT "+channelColumns+" FROM chat_channels "+
			"WHERE guild_id = $1 AND channel_id = $2 LIMIT 1",
		guildId, channelId,
	)

	return scanSubscription(row)
}

func (db *PgRelayRepository) ListRoomChannels(roomId int, activeOnly bool) ([]Subscription, error) {
	rows, err := db.conn.Query(
		"SELECT "+channelColumns+" FROM chat_channels "+
			"WHERE room_id = $1 AND (is_active OR NOT $2) ORDER BY registered_at",
		roomId, activeOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

func (db *PgRelayRepository) ListGuildChannels(guildId string) ([]Subscription, error) {
	rows, err := db.conn.Query(
		"SELECT "+channelColumns+" FROM chat_channels WHERE guild_id = $1 ORDER BY registered_at",
		guildId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

func collectSubscriptions(rows *sql.Rows) ([]Subscription, error) {
	var subs = make([]Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}

		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (db *PgRelayRepository) TouchSubscription(guildId, channelId string, at time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE chat_channels SET last_message_at = $3 WHERE guild_id = $1 AND channel_id = $2",
		guildId, channelId, at,
	)

	return err
}

func (db *PgRelayRepository) ListGuilds(activeOnly bool) ([]GuildSummary, error) {
	rows, err := db.conn.Query(
		"SELECT c.guild_id, MAX(c.guild_name), COUNT(*) FILTER (WHERE c.is_active), " +
			"BOOL_OR(b.is_active IS TRUE), MAX(c.last_message_at) " +
			"FROM chat_channels c LEFT JOIN guild_bans b ON b.guild_id = c.guild_id AND b.is_active " +
			"GROUP BY c.guild_id ORDER BY c.guild_id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guilds = make([]GuildSummary, 0)
	for rows.Next() {
		var (
			g            GuildSummary
			lastActivity sql.NullTime
		)
		if err = rows.Scan(&g.GuildId, &g.GuildName, &g.ChannelCount, &g.IsBanned, &lastActivity); err != nil {
			return nil, fmt.Errorf("scan guild: %w", err)
		}
		if lastActivity.Valid {
			t := lastActivity.Time
			g.LastActivity = &t
		}

		if activeOnly && g.ChannelCount == 0 {
			continue
		}

		guilds = append(guilds, g)
	}

	return guilds, rows.Err()
}

func (db *PgRelayRepository) GetGuild(guildId string) (GuildSummary, error) {
	guilds, err := db.ListGuilds(false)
	if err != nil {
		return GuildSummary{}, err
	}

	for _, g := range guilds {
		if g.GuildId == guildId {
			return g, nil
		}
	}

	return GuildSummary{}, ErrNotFound
}
