// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table        string
	SQLiteTable  string
	ID           string
	Phone        string
	PasswordHash string
	FullName     string
	Role         string
	CreatedAt    string
	UpdatedAt    string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:        "users.account",
	SQLiteTable:  "users_account",
	ID:           "id",
	Phone:        "phone",
	PasswordHash: "passwordhash",
	FullName:     "fullname",
	Role:         "role",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
}

// Columns returns all standard column names
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Phone, t.PasswordHash, t.FullName, t.Role, t.CreatedAt, t.UpdatedAt,
	}
}
