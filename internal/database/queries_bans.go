package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const banColumns = "id, guild_id, guild_name, reason, banned_by, banned_at, is_active, unbanned_at, unbanned_by"

func scanBan(row interface{ Scan(...any) error }) (GuildBan, error) {
	var (
		ban        GuildBan
		unbannedAt sql.NullTime
		unbannedBy sql.NullString
	)
	err := row.Scan(
		&ban.Id,
		&ban.GuildId,
		&ban.GuildName,
		&ban.Reason,
		&ban.BannedBy,
		&ban.BannedAt,
		&ban.IsActive,
		&unbannedAt,
		&unbannedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return GuildBan{}, ErrNotFound
	}
	if unbannedAt.Valid {
		t := unbannedAt.Time
		ban.UnbannedAt = &t
	}
	ban.UnbannedBy = unbannedBy.String

	return ban, err
}

func (db *PgRelayRepository) BanGuild(params BanGuildParams) (GuildBan, error) {
	row := db.conn.QueryRow(
		"INSERT INTO guild_bans (guild_id, guild_name, reason, banned_by, banned_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING "+banColumns,
		params.GuildId,
		params.GuildName,
		params.Reason,
		params.BannedBy,
		time.Now().UTC(),
	)

	ban, err := scanBan(row)
	if err != nil && isUniqueViolation(err) {
		return GuildBan{}, ErrAlreadyBound
	}

	return ban, err
}

// UnbanGuild closes the active ban row. Subscriptions are untouched;
// delivery resumes on the next resolver cache refresh.
func (db *PgRelayRepository) UnbanGuild(guildId, actor string) (GuildBan, error) {
	row := db.conn.QueryRow(
		"UPDATE guild_bans SET is_active = FALSE, unbanned_at = $2, unbanned_by = $3 "+
			"WHERE guild_id = $1 AND is_active RETURNING "+banColumns,
		guildId,
		time.Now().UTC(),
		actor,
	)

	return scanBan(row)
}

func (db *PgRelayRepository) GetActiveBan(guildId string) (GuildBan, error) {
	row := db.conn.QueryRow(
		"SELECT "+banColumns+" FROM guild_bans WHERE guild_id = $1 AND is_active LIMIT 1",
		guildId,
	)

	return scanBan(row)
}

func (db *PgRelayRepository) ListBans(includeInactive bool) ([]GuildBan, error) {
	rows, err := db.conn.Query(
		"SELECT "+banColumns+" FROM guild_bans WHERE is_active OR $1 ORDER BY banned_at DESC",
		includeInactive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans = make([]GuildBan, 0)
	for rows.Next() {
		ban, err := scanBan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ban: %w", err)
		}

		bans = append(bans, ban)
	}

	return bans, rows.Err()
}
