package database

import (
	"database/sql"
	"errors"
	"time"
)

const adminColumns = "id, username, hashed_password, is_superuser, is_active, created_at, last_login"

func scanAdmin(row *sql.Row) (AdminUser, error) {
	var (
		user      AdminUser
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.PasswordHash,
		&user.IsSuperuser,
		&user.IsActive,
		&user.CreatedAt,
		&lastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return AdminUser{}, ErrNotFound
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}

	return user, err
}

func (db *PgRelayRepository) GetAdminByUsername(username string) (AdminUser, error) {
	row := db.conn.QueryRow(
		"SELECT "+adminColumns+" FROM admin_users WHERE username = $1 AND is_active LIMIT 1",
		username,
	)

	return scanAdmin(row)
}

// UpsertAdmin seeds or refreshes the root credential at boot so login
// always verifies against a store row.
func (db *PgRelayRepository) UpsertAdmin(username, passwordHash string, superuser bool) (AdminUser, error) {
	row := db.conn.QueryRow(
		"INSERT INTO admin_users (username, hashed_password, is_superuser) VALUES ($1, $2, $3) "+
			"ON CONFLICT (username) DO UPDATE SET hashed_password = EXCLUDED.hashed_password, "+
			"is_superuser = EXCLUDED.is_superuser, is_active = TRUE "+
			"RETURNING "+adminColumns,
		username, passwordHash, superuser,
	)

	return scanAdmin(row)
}

func (db *PgRelayRepository) TouchAdminLogin(id int) error {
	_, err := db.conn.Exec(
		"UPDATE admin_users SET last_login = $2 WHERE id = $1",
		id, time.Now().UTC(),
	)

	return err
}

func (db *PgRelayRepository) GetSetting(key string) (string, error) {
	var value string
	err := db.conn.QueryRow(
		"SELECT value FROM system_settings WHERE key = $1 LIMIT 1", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}

	return value, err
}

func (db *PgRelayRepository) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO system_settings (key, value) VALUES ($1, $2) "+
			"ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()",
		key, value,
	)

	return err
}
