// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserRefreshTokenTable represents the 'users.refresh_token' table
type UserRefreshTokenTable struct {
	Table       string
	SQLiteTable string
	ID          string
	UserID      string
	TokenHash   string
	ExpiresAt   string
	CreatedAt   string
}

// UserRefreshToken is the schema definition for users.refresh_token
var UserRefreshToken = UserRefreshTokenTable{
	Table:       "users.refresh_token",
	SQLiteTable: "users_refresh_token",
	ID:          "id",
	UserID:      "userid",
	TokenHash:   "tokenhash",
	ExpiresAt:   "expiresat",
	CreatedAt:   "createdat",
}

// Columns returns all standard column names
func (t UserRefreshTokenTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt,
	}
}
