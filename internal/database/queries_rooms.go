package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const roomColumns = "id, name, created_by, created_at, max_servers, is_active"

func scanRoom(row *sql.Row) (Room, error) {
	var room Room
	err := row.Scan(
		&room.Id,
		&room.Name,
		&room.CreatedBy,
		&room.CreatedAt,
		&room.MaxServers,
		&room.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}

	return room, err
}

func (db *PgRelayRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	if params.MaxServers <= 0 {
		return Room{}, ErrLimitInvalid
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// serializable so two concurrent creates with the same name cannot
	// both pass the partial unique index check window
	if _, err = tx.Exec("SET TRANSACTION ISOLATION LEVEL SERIALIZABLE"); err != nil {
		return Room{}, err
	}

	res := tx.QueryRow(
		"INSERT INTO chat_rooms (name, created_by, created_at, max_servers) "+
			"VALUES ($1, $2, $3, $4) RETURNING "+roomColumns,
		params.Name,
		params.CreatedBy,
		time.Now().UTC(),
		params.MaxServers,
	)

	var room Room
	room, err = scanRoom(res)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrNameTaken
		}
		return Room{}, err
	}

	// permissions row is born with the room and dies with it
	_, err = tx.Exec("INSERT INTO room_permissions (room_id, updated_by) VALUES ($1, $2)",
		room.Id, params.CreatedBy)
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, nil
}

func (db *PgRelayRepository) UpdateRoom(id int, params UpdateRoomParams) (Room, error) {
	cur, err := db.GetRoom(id)
	if err != nil {
		return Room{}, err
	}

	name := cur.Name
	if params.Name != nil {
		name = *params.Name
	}
	maxServers := cur.MaxServers
	if params.MaxServers != nil {
		if *params.MaxServers <= 0 {
			return Room{}, ErrLimitInvalid
		}
		maxServers = *params.MaxServers
	}
	isActive := cur.IsActive
	if params.IsActive != nil {
		isActive = *params.IsActive
	}

	row := db.conn.QueryRow(
		"UPDATE chat_rooms SET name = $2, max_servers = $3, is_active = $4 "+
			"WHERE id = $1 RETURNING "+roomColumns,
		id, name, maxServers, isActive,
	)

	room, err := scanRoom(row)
	if err != nil && isUniqueViolation(err) {
		return Room{}, ErrNameTaken
	}

	return room, err
}

// DeleteRoom soft-deletes the room: permissions are removed, channel
// bindings are deactivated for audit, and the message log survives.
func (db *PgRelayRepository) DeleteRoom(id int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.Exec("UPDATE chat_rooms SET is_active = FALSE WHERE id = $1", id)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}

	_, err = tx.Exec("DELETE FROM room_permissions WHERE room_id = $1", id)
	if err != nil {
		return err
	}

	_, err = tx.Exec("UPDATE chat_channels SET is_active = FALSE WHERE room_id = $1", id)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgRelayRepository) GetRoom(id int) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM chat_rooms WHERE id = $1 LIMIT 1", id,
	)

	return scanRoom(row)
}

func (db *PgRelayRepository) GetRoomByName(name string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM chat_rooms WHERE LOWER(name) = LOWER($1) AND is_active LIMIT 1",
		name,
	)

	return scanRoom(row)
}

func (db *PgRelayRepository) ListRooms(includeInactive bool) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.name, r.created_by, r.created_at, r.max_servers, r.is_active, "+
			"COUNT(c.id) FILTER (WHERE c.is_active) AS channel_count "+
			"FROM chat_rooms r LEFT JOIN chat_channels c ON c.room_id = r.id "+
			"WHERE r.is_active OR $1 "+
			"GROUP BY r.id ORDER BY r.created_at",
		includeInactive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms = make([]Room, 0)
	for rows.Next() {
		var room Room
		if err = rows.Scan(
			&room.Id,
			&room.Name,
			&room.CreatedBy,
			&room.CreatedAt,
			&room.MaxServers,
			&room.IsActive,
			&room.ChannelCount,
		); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}

		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

const permissionColumns = "room_id, allow_urls, allow_files, allow_mentions, allow_emojis, " +
	"enable_bad_word_filter, max_message_length, rate_limit_seconds, updated_by, updated_at"

func scanPermissions(row *sql.Row) (RoomPermissions, error) {
	var p RoomPermissions
	err := row.Scan(
		&p.RoomId,
		&p.AllowURLs,
		&p.AllowFiles,
		&p.AllowMentions,
		&p.AllowEmojis,
		&p.EnableBadWordFilter,
		&p.MaxMessageLength,
		&p.RateLimitSeconds,
		&p.UpdatedBy,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RoomPermissions{}, ErrNotFound
	}

	return p, err
}

func (db *PgRelayRepository) GetPermissions(roomId int) (RoomPermissions, error) {
	row := db.conn.QueryRow(
		"SELECT "+permissionColumns+" FROM room_permissions WHERE room_id = $1 LIMIT 1",
		roomId,
	)

	return scanPermissions(row)
}

func (db *PgRelayRepository) UpdatePermissions(roomId int, params UpdatePermissionsParams) (RoomPermissions, error) {
	cur, err := db.GetPermissions(roomId)
	if err != nil {
		return RoomPermissions{}, err
	}

	if params.AllowURLs != nil {
		cur.AllowURLs = *params.AllowURLs
	}
	if params.AllowFiles != nil {
		cur.AllowFiles = *params.AllowFiles
	}
	if params.AllowMentions != nil {
		cur.AllowMentions = *params.AllowMentions
	}
	if params.AllowEmojis != nil {
		cur.AllowEmojis = *params.AllowEmojis
	}
	if params.EnableBadWordFilter != nil {
		cur.EnableBadWordFilter = *params.EnableBadWordFilter
	}
	if params.MaxMessageLength != nil {
		if *params.MaxMessageLength < 1 || *params.MaxMessageLength > 4000 {
			return RoomPermissions{}, ErrLimitInvalid
		}
		cur.MaxMessageLength = *params.MaxMessageLength
	}
	if params.RateLimitSeconds != nil {
		if *params.RateLimitSeconds < 0 || *params.RateLimitSeconds > 60 {
			return RoomPermissions{}, ErrLimitInvalid
		}
		cur.RateLimitSeconds = *params.RateLimitSeconds
	}

	row := db.conn.QueryRow(
		"UPDATE room_permissions SET allow_urls = $2, allow_files = $3, allow_mentions = $4, "+
			"allow_emojis = $5, enable_bad_word_filter = $6, max_message_length = $7, "+
			"rate_limit_seconds = $8, updated_by = $9, updated_at = $10 "+
			"WHERE room_id = $1 RETURNING "+permissionColumns,
		roomId,
		cur.AllowURLs,
		cur.AllowFiles,
		cur.AllowMentions,
		cur.AllowEmojis,
		cur.EnableBadWordFilter,
		cur.MaxMessageLength,
		cur.RateLimitSeconds,
		params.UpdatedBy,
		time.Now().UTC(),
	)

	return scanPermissions(row)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
