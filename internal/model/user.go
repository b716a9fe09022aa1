package model

import "time"

// User represents a row in the `users` table. Username and email are
// stored lowercased so uniqueness is case-insensitive. The json tags
// are omitted because these structs are internal to the repository
// layer; handlers define separate response types and never expose
// PasswordHash.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name, lowercased.
//  Email        – unique email address, lowercased.
//  PasswordHash – bcrypt hashed password.
//  RoleID       – foreign key into the roles table.
//  IsActive     – whether the account may authenticate.
//  LastLoginAt  – last successful login (null until first login).
type User struct {
	ID           uint64     // users.id
	Username     string     // users.username
	Email        string     // users.email
	PasswordHash string     // users.password_hash
	RoleID       uint64     // users.role_id (references roles.id)
	IsActive     bool       // users.is_active
	LastLoginAt  *time.Time // users.last_login_at (nullable)
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
}
