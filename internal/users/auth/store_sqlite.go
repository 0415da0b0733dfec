// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/internal/platform/database/schema"
	"github.com/taibuivan/fixoo/internal/platform/dberr"
	"github.com/taibuivan/fixoo/internal/platform/sec"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// # User Repository

// SQLiteUserRepository implements UserRepository over the embedded database.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a SQLite-backed UserRepository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

var sqliteUserSelect = fmt.Sprintf(`SELECT %s, %s, %s, %s, %s, %s, %s FROM %s`,
	schema.UserAccount.ID,
	schema.UserAccount.Phone,
	schema.UserAccount.PasswordHash,
	schema.UserAccount.FullName,
	schema.UserAccount.Role,
	schema.UserAccount.CreatedAt,
	schema.UserAccount.UpdatedAt,
	schema.UserAccount.SQLiteTable,
)

// Create inserts the account and reads back its AUTOINCREMENT id.
func (repository *SQLiteUserRepository) Create(context context.Context, user *User) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES (?1, ?2, ?3, ?4, ?5, ?5)`,
		schema.UserAccount.SQLiteTable,
		schema.UserAccount.Phone,
		schema.UserAccount.PasswordHash,
		schema.UserAccount.FullName,
		schema.UserAccount.Role,
		schema.UserAccount.CreatedAt,
		schema.UserAccount.UpdatedAt,
	)

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := repository.db.ExecContext(context, query,
		user.Phone,
		user.PasswordHash,
		user.FullName,
		string(user.Role),
		toMillis(now),
	)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.AlreadyExists("Phone number is already registered").WithCause(err)
		}
		return fmt.Errorf("sqlite_user_repo_create_failed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite_user_repo_last_insert_id_failed: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// FindByPhone retrieves an account by canonical phone.
func (repository *SQLiteUserRepository) FindByPhone(context context.Context, phone string) (*User, error) {
	query := sqliteUserSelect + fmt.Sprintf(` WHERE %s = ?1`, schema.UserAccount.Phone)

	user, err := repository.scanUser(repository.db.QueryRowContext(context, query, phone))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("sqlite_user_repo_find_by_phone_failed: %w", err)
	}
	return user, nil
}

// FindByID retrieves an account by primary key.
func (repository *SQLiteUserRepository) FindByID(context context.Context, id int64) (*User, error) {
	query := sqliteUserSelect + fmt.Sprintf(` WHERE %s = ?1`, schema.UserAccount.ID)

	user, err := repository.scanUser(repository.db.QueryRowContext(context, query, id))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("sqlite_user_repo_find_by_id_failed: %w", err)
	}
	return user, nil
}

// UpdatePassword replaces the stored hash.
func (repository *SQLiteUserRepository) UpdatePassword(context context.Context, userID int64, newHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = ?1, %s = ?2 WHERE %s = ?3`,
		schema.UserAccount.SQLiteTable,
		schema.UserAccount.PasswordHash,
		schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID,
	)

	result, err := repository.db.ExecContext(context, query, newHash, toMillis(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("sqlite_user_repo_update_password_failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite_user_repo_rows_affected_failed: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("User")
	}
	return nil
}

// UpdateRole replaces the stored role.
func (repository *SQLiteUserRepository) UpdateRole(context context.Context, userID int64, role sec.UserRole) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = ?1, %s = ?2 WHERE %s = ?3`,
		schema.UserAccount.SQLiteTable,
		schema.UserAccount.Role,
		schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID,
	)

	result, err := repository.db.ExecContext(context, query, string(role), toMillis(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("sqlite_user_repo_update_role_failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite_user_repo_rows_affected_failed: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("User")
	}
	return nil
}

func (repository *SQLiteUserRepository) scanUser(row *sql.Row) (*User, error) {
	var (
		user      User
		role      string
		createdAt int64
		updatedAt int64
	)

	if err := row.Scan(&user.ID, &user.Phone, &user.PasswordHash, &user.FullName, &role, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	user.Role = roleOf(role)
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return &user, nil
}

// # Refresh Token Repository

// SQLiteRefreshTokenRepository implements RefreshTokenRepository over the embedded database.
type SQLiteRefreshTokenRepository struct {
	db *sql.DB
}

// NewSQLiteRefreshTokenRepository creates a SQLite-backed RefreshTokenRepository.
func NewSQLiteRefreshTokenRepository(db *sql.DB) *SQLiteRefreshTokenRepository {
	return &SQLiteRefreshTokenRepository{db: db}
}

// Create inserts one ledger record.
func (repository *SQLiteRefreshTokenRepository) Create(context context.Context, token *RefreshToken) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s) VALUES (?1, ?2, ?3, ?4, ?5)`,
		schema.UserRefreshToken.SQLiteTable,
		schema.UserRefreshToken.ID,
		schema.UserRefreshToken.UserID,
		schema.UserRefreshToken.TokenHash,
		schema.UserRefreshToken.ExpiresAt,
		schema.UserRefreshToken.CreatedAt,
	)

	_, err := repository.db.ExecContext(context, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		toMillis(token.ExpiresAt),
		toMillis(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite_refresh_token_repo_create_failed: %w", err)
	}
	return nil
}

// ListActive returns the unexpired records of a user, newest first.
func (repository *SQLiteRefreshTokenRepository) ListActive(context context.Context, userID int64, now time.Time) ([]*RefreshToken, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = ?1 AND %s > ?2
		ORDER BY %s DESC, rowid DESC`,
		schema.UserRefreshToken.ID,
		schema.UserRefreshToken.UserID,
		schema.UserRefreshToken.TokenHash,
		schema.UserRefreshToken.ExpiresAt,
		schema.UserRefreshToken.CreatedAt,
		schema.UserRefreshToken.SQLiteTable,
		schema.UserRefreshToken.UserID,
		schema.UserRefreshToken.ExpiresAt,
		schema.UserRefreshToken.CreatedAt,
	)

	rows, err := repository.db.QueryContext(context, query, userID, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("sqlite_refresh_token_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var tokens []*RefreshToken
	for rows.Next() {
		var (
			token     RefreshToken
			expiresAt int64
			createdAt int64
		)
		if err := rows.Scan(&token.ID, &token.UserID, &token.TokenHash, &expiresAt, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite_refresh_token_repo_scan_failed: %w", err)
		}
		token.ExpiresAt = fromMillis(expiresAt)
		token.CreatedAt = fromMillis(createdAt)
		tokens = append(tokens, &token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite_refresh_token_repo_rows_failed: %w", err)
	}
	return tokens, nil
}

// Delete removes one record. Only the caller that actually removed it sees true.
func (repository *SQLiteRefreshTokenRepository) Delete(context context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?1`,
		schema.UserRefreshToken.SQLiteTable, schema.UserRefreshToken.ID)

	affected, err := repository.exec(context, query, id)
	if err != nil {
		return false, fmt.Errorf("sqlite_refresh_token_repo_delete_failed: %w", err)
	}
	return affected == 1, nil
}

// DeleteAllForUser removes every record of a user.
func (repository *SQLiteRefreshTokenRepository) DeleteAllForUser(context context.Context, userID int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?1`,
		schema.UserRefreshToken.SQLiteTable, schema.UserRefreshToken.UserID)

	affected, err := repository.exec(context, query, userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite_refresh_token_repo_delete_all_failed: %w", err)
	}
	return affected, nil
}

// DeleteExpired purges lapsed records.
func (repository *SQLiteRefreshTokenRepository) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s <= ?1`,
		schema.UserRefreshToken.SQLiteTable, schema.UserRefreshToken.ExpiresAt)

	affected, err := repository.exec(context, query, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("sqlite_refresh_token_repo_delete_expired_failed: %w", err)
	}
	return affected, nil
}

// exec runs a statement and returns its affected row count.
func (repository *SQLiteRefreshTokenRepository) exec(context context.Context, query string, args ...any) (int64, error) {
	result, err := repository.db.ExecContext(context, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
