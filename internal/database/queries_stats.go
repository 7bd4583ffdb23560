package database

import (
	"database/sql"
	"fmt"
	"time"
)

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (db *PgRelayRepository) LiveStats() (LiveStats, error) {
	var stats LiveStats
	err := db.conn.QueryRow(
		"SELECT " +
			"(SELECT COUNT(*) FROM chat_rooms WHERE is_active), " +
			"(SELECT COUNT(*) FROM chat_channels WHERE is_active), " +
			"(SELECT COUNT(DISTINCT guild_id) FROM chat_channels WHERE is_active), " +
			"(SELECT COUNT(*) FROM chat_messages WHERE ts >= date_trunc('day', now())), " +
			"(SELECT COUNT(*) FROM chat_messages WHERE ts >= now() - interval '1 hour'), " +
			"(SELECT COUNT(*) FROM guild_bans WHERE is_active)",
	).Scan(
		&stats.ActiveRooms,
		&stats.ActiveChannels,
		&stats.ActiveGuilds,
		&stats.MessagesToday,
		&stats.MessagesHour,
		&stats.BannedGuilds,
	)

	return stats, err
}

func (db *PgRelayRepository) QueryMessageStats(days int) ([]DailyStat, error) {
	if days <= 0 || days > 365 {
		days = 7
	}

	rows, err := db.conn.Query(
		"SELECT date_trunc('day', ts)::date AS day, room_id, COUNT(*), "+
			"COUNT(DISTINCT author_id), COUNT(DISTINCT source_guild_id) "+
			"FROM chat_messages WHERE ts >= now() - make_interval(days => $1) "+
			"GROUP BY day, room_id ORDER BY day",
		days,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDailyStats(rows)
}

func (db *PgRelayRepository) QueryRoomStats(roomId, days int) (RoomStats, error) {
	if days <= 0 || days > 365 {
		days = 7
	}

	stats := RoomStats{RoomId: roomId}
	err := db.conn.QueryRow(
		"SELECT COUNT(*), COUNT(DISTINCT author_id), COUNT(DISTINCT source_guild_id), "+
			"COALESCE(SUM(delivered_count), 0), COALESCE(SUM(failed_count), 0) "+
			"FROM chat_messages WHERE room_id = $1 AND ts >= now() - make_interval(days => $2)",
		roomId, days,
	).Scan(
		&stats.MessageCount,
		&stats.UniqueAuthors,
		&stats.UniqueGuilds,
		&stats.Delivered,
		&stats.Failed,
	)

	return stats, err
}

func (db *PgRelayRepository) QueryGuildStats(guildId string, days int) (GuildStats, error) {
	if days <= 0 || days > 365 {
		days = 7
	}

	stats := GuildStats{GuildId: guildId}
	err := db.conn.QueryRow(
		"SELECT COALESCE(MAX(c.guild_name), ''), COUNT(m.id), COUNT(DISTINCT m.author_id), "+
			"COUNT(DISTINCT c.room_id) FILTER (WHERE c.is_active) "+
			"FROM chat_channels c LEFT JOIN chat_messages m "+
			"ON m.source_guild_id = c.guild_id AND m.ts >= now() - make_interval(days => $2) "+
			"WHERE c.guild_id = $1",
		guildId, days,
	).Scan(
		&stats.GuildName,
		&stats.MessageCount,
		&stats.UniqueAuthors,
		&stats.Rooms,
	)

	return stats, err
}

func (db *PgRelayRepository) QueryGuildActivity(guildId string, hours int) ([]ActivityBucket, error) {
	if hours <= 0 || hours > 168 {
		hours = 24
	}

	rows, err := db.conn.Query(
		"SELECT date_trunc('hour', ts) AS hour, COUNT(*) FROM chat_messages "+
			"WHERE source_guild_id = $1 AND ts >= now() - make_interval(hours => $2) "+
			"GROUP BY hour ORDER BY hour",
		guildId, hours,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets = make([]ActivityBucket, 0)
	for rows.Next() {
		var b ActivityBucket
		if err = rows.Scan(&b.Hour, &b.MessageCount); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}

		buckets = append(buckets, b)
	}

	return buckets, rows.Err()
}

// UpsertDailyStats recomputes the rollup row for every room with
// traffic on the given date. Run by the analytics cron.
func (db *PgRelayRepository) UpsertDailyStats(date time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO daily_stats (date, room_id, message_count, unique_users, unique_guilds) "+
			"SELECT $1::date, room_id, COUNT(*), COUNT(DISTINCT author_id), COUNT(DISTINCT source_guild_id) "+
			"FROM chat_messages WHERE ts >= $1::date AND ts < $1::date + interval '1 day' "+
			"GROUP BY room_id "+
			"ON CONFLICT (date, room_id) DO UPDATE SET "+
			"message_count = EXCLUDED.message_count, "+
			"unique_users = EXCLUDED.unique_users, "+
			"unique_guilds = EXCLUDED.unique_guilds",
		date.UTC().Format("2006-01-02"),
	)

	return err
}

func (db *PgRelayRepository) QueryTrends(days int) ([]DailyStat, error) {
	if days <= 0 || days > 365 {
		days = 30
	}

	rows, err := db.conn.Query(
		"SELECT date, room_id, message_count, unique_users, unique_guilds FROM daily_stats "+
			"WHERE date >= now()::date - $1 ORDER BY date",
		days,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDailyStats(rows)
}

func collectDailyStats(rows *sql.Rows) ([]DailyStat, error) {
	var stats = make([]DailyStat, 0)
	for rows.Next() {
		var s DailyStat
		if err := rows.Scan(&s.Date, &s.RoomId, &s.MessageCount, &s.UniqueUsers, &s.UniqueGuilds); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}

		stats = append(stats, s)
	}

	return stats, rows.Err()
}
