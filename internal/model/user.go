package model

import "time"

// Roles understood by the API.  USER books slots for themselves, ADMIN
// manages floors, slots, users and every booking.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – USER or ADMIN.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// PasswordResetToken is a single-use token issued by the forgot-password
// flow.  Like refresh tokens only the SHA‑256 hash is stored and the
// expiry is checked when the token is consumed.
type PasswordResetToken struct {
	TokenHash string    // password_reset_tokens.token_hash
	UserID    uint64    // password_reset_tokens.user_id
	ExpiresAt time.Time // password_reset_tokens.expires_at
	CreatedAt time.Time // password_reset_tokens.created_at
}
