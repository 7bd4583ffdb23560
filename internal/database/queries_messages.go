package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const messageColumns = "id, room_id, source_guild_id, source_channel_id, source_message_id, " +
	"author_id, author_display, content, attachments, reply_to, ts, delivered_count, failed_count"

func scanMessage(row interface{ Scan(...any) error }) (MessageLogEntry, error) {
	var (
		entry       MessageLogEntry
		attachments []byte
		replyTo     []byte
	)
	err := row.Scan(
		&entry.Id,
		&entry.RoomId,
		&entry.SourceGuildId,
		&entry.SourceChannelId,
		&entry.SourceMessageId,
		&entry.AuthorId,
		&entry.AuthorDisplay,
		&entry.Content,
		&attachments,
		&replyTo,
		&entry.Timestamp,
		&entry.DeliveredCount,
		&entry.FailedCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return MessageLogEntry{}, ErrNotFound
	}
	if err != nil {
		return MessageLogEntry{}, err
	}

	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &entry.Attachments); err != nil {
			return MessageLogEntry{}, fmt.Errorf("decode attachments: %w", err)
		}
	}
	if len(replyTo) > 0 {
		if err := json.Unmarshal(replyTo, &entry.ReplyTo); err != nil {
			return MessageLogEntry{}, fmt.Errorf("decode reply_to: %w", err)
		}
	}

	return entry, nil
}

// AppendMessageLog inserts one log row. The relay path never calls this
// directly; it goes through the LogWriter so the pipeline is not blocked
// on the store.
func (db *PgRelayRepository) AppendMessageLog(entry MessageLogEntry) (int64, error) {
	var (
		attachments []byte
		replyTo     []byte
		err         error
	)
	if len(entry.Attachments) > 0 {
		if attachments, err = json.Marshal(entry.Attachments); err != nil {
			return 0, fmt.Errorf("encode attachments: %w", err)
		}
	}
	if entry.ReplyTo != nil {
		if replyTo, err = json.Marshal(entry.ReplyTo); err != nil {
			return 0, fmt.Errorf("encode reply_to: %w", err)
		}
	}

	var id int64
	err = db.conn.QueryRow(
		"INSERT INTO chat_messages (room_id, source_guild_id, source_channel_id, source_message_id, "+
			"author_id, author_display, content, attachments, reply_to, ts, delivered_count, failed_count) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id",
		entry.RoomId,
		entry.SourceGuildId,
		entry.SourceChannelId,
		entry.SourceMessageId,
		entry.AuthorId,
		entry.AuthorDisplay,
		entry.Content,
		attachments,
		replyTo,
		entry.Timestamp,
		entry.DeliveredCount,
		entry.FailedCount,
	).Scan(&id)

	return id, err
}

func (db *PgRelayRepository) GetLoggedMessage(roomId int, sourceMessageId string) (MessageLogEntry, error) {
	row := db.conn.QueryRow(
		"SELECT "+messageColumns+" FROM chat_messages "+
			"WHERE room_id = $1 AND source_message_id = $2 ORDER BY ts DESC LIMIT 1",
		roomId, sourceMessageId,
	)

	return scanMessage(row)
}

func (db *PgRelayRepository) ListRoomMessages(roomId, limit, offset int) ([]MessageLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM chat_messages "+
			"WHERE room_id = $1 ORDER BY ts DESC LIMIT $2 OFFSET $3",
		roomId, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (db *PgRelayRepository) ExportMessages(filter ExportFilter) ([]MessageLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM chat_messages "+
			"WHERE ($1 = 0 OR room_id = $1) AND ($2 = '' OR source_guild_id = $2) "+
			"AND ($3::timestamptz IS NULL OR ts >= $3) AND ($4::timestamptz IS NULL OR ts <= $4) "+
			"ORDER BY ts LIMIT $5",
		filter.RoomId,
		filter.GuildId,
		nullTime(filter.Since),
		nullTime(filter.Until),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]MessageLogEntry, error) {
	var entries = make([]MessageLogEntry, 0)
	for rows.Next() {
		entry, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
