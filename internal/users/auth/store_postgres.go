// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/internal/platform/database/schema"
	"github.com/taibuivan/fixoo/internal/platform/dberr"
	"github.com/taibuivan/fixoo/internal/platform/sec"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

var userColumns = fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s",
	schema.UserAccount.ID,
	schema.UserAccount.Phone,
	schema.UserAccount.PasswordHash,
	schema.UserAccount.FullName,
	schema.UserAccount.Role,
	schema.UserAccount.CreatedAt,
	schema.UserAccount.UpdatedAt,
)

/*
Create persists a new account into the users.account table.

Description: The database assigns the BIGSERIAL id. A duplicate phone is
reported as apperr.AlreadyExists through the unique constraint, which closes
the race between two concurrent registrations.

Parameters:
  - context: context.Context
  - user: *User (ID and timestamps are filled in)

Returns:
  - error: apperr.AlreadyExists or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING %s`,
		schema.UserAccount.Table,
		schema.UserAccount.Phone,
		schema.UserAccount.PasswordHash,
		schema.UserAccount.FullName,
		schema.UserAccount.Role,
		schema.UserAccount.CreatedAt,
		schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID,
	)

	now := time.Now().UTC()
	err := repository.pool.QueryRow(context, query,
		user.Phone,
		user.PasswordHash,
		user.FullName,
		user.Role,
		now,
	).Scan(&user.ID)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.AlreadyExists("Phone number is already registered").WithCause(err)
		}
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

/*
FindByPhone retrieves an account by its canonical phone.

Parameters:
  - context: context.Context
  - phone: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByPhone(context context.Context, phone string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		userColumns, schema.UserAccount.Table, schema.UserAccount.Phone)

	user, err := repository.scanUser(context, query, phone)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_phone_failed: %w", err)
	}

	return user, nil
}

/*
FindByID retrieves an account by primary key.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id int64) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		userColumns, schema.UserAccount.Table, schema.UserAccount.ID)

	user, err := repository.scanUser(context, query, id)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err)
	}

	return user, nil
}

/*
UpdatePassword replaces the stored hash and bumps updatedat.

Parameters:
  - context: context.Context
  - userID: int64
  - newHash: string

Returns:
  - error: apperr.NotFound when no account matched, or database errors
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID int64, newHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1, %s = NOW() WHERE %s = $2`,
		schema.UserAccount.Table,
		schema.UserAccount.PasswordHash,
		schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID,
	)

	tag, err := repository.pool.Exec(context, query, newHash, userID)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

// UpdateRole replaces the stored role and bumps updatedat.
func (repository *PostgresUserRepository) UpdateRole(context context.Context, userID int64, role sec.UserRole) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1, %s = NOW() WHERE %s = $2`,
		schema.UserAccount.Table,
		schema.UserAccount.Role,
		schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID,
	)

	tag, err := repository.pool.Exec(context, query, string(role), userID)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_role_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

// scanUser runs a single-row account query.
func (repository *PostgresUserRepository) scanUser(context context.Context, query string, argument any) (*User, error) {
	user := &User{}
	err := repository.pool.QueryRow(context, query, argument).Scan(
		&user.ID,
		&user.Phone,
		&user.PasswordHash,
		&user.FullName,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// # Refresh Token Repository

// PostgresRefreshTokenRepository implements RefreshTokenRepository using pgx.
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRefreshTokenRepository creates a new PostgreSQL RefreshTokenRepository.
func NewPostgresRefreshTokenRepository(pool *pgxpool.Pool) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

// Create inserts one ledger record.
func (repository *PostgresRefreshTokenRepository) Create(context context.Context, token *RefreshToken) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s) VALUES ($1, $2, $3, $4, $5)`,
		schema.UserRefreshToken.Table,
		schema.UserRefreshToken.ID,
		schema.UserRefreshToken.UserID,
		schema.UserRefreshToken.TokenHash,
		schema.UserRefreshToken.ExpiresAt,
		schema.UserRefreshToken.CreatedAt,
	)

	_, err := repository.pool.Exec(context, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_refresh_token_repo_create_failed: %w", err)
	}

	return nil
}

/*
ListActive returns the unexpired records of a user, newest first.

Parameters:
  - context: context.Context
  - userID: int64
  - now: time.Time

Returns:
  - []*RefreshToken: Possibly empty
  - error: Database errors
*/
func (repository *PostgresRefreshTokenRepository) ListActive(context context.Context, userID int64, now time.Time) ([]*RefreshToken, error) {
	query := fmt.Sprintf(`
		SELECT %s::text, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s > $2
		ORDER BY %s DESC`,
		schema.UserRefreshToken.ID,
		schema.UserRefreshToken.UserID,
		schema.UserRefreshToken.TokenHash,
		schema.UserRefreshToken.ExpiresAt,
		schema.UserRefreshToken.CreatedAt,
		schema.UserRefreshToken.Table,
		schema.UserRefreshToken.UserID,
		schema.UserRefreshToken.ExpiresAt,
		schema.UserRefreshToken.CreatedAt,
	)

	rows, err := repository.pool.Query(context, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("postgres_refresh_token_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var tokens []*RefreshToken
	for rows.Next() {
		token := &RefreshToken{}
		if err := rows.Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_refresh_token_repo_scan_failed: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_refresh_token_repo_rows_failed: %w", err)
	}

	return tokens, nil
}

/*
Delete removes one record by ID.

Description: A single DELETE statement; under concurrent redemption of the
same record only one caller sees a non-zero row count.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - bool: Whether this call removed the row
  - error: Database errors
*/
func (repository *PostgresRefreshTokenRepository) Delete(context context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.ID)

	tag, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return false, fmt.Errorf("postgres_refresh_token_repo_delete_failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// DeleteAllForUser removes every record of a user.
func (repository *PostgresRefreshTokenRepository) DeleteAllForUser(context context.Context, userID int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.UserID)

	tag, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_token_repo_delete_all_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteExpired purges lapsed records.
func (repository *PostgresRefreshTokenRepository) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s <= $1`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.ExpiresAt)

	tag, err := repository.pool.Exec(context, query, now)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_token_repo_delete_expired_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}
