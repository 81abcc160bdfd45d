package entities

import "time"

// User is the identity returned by the auth mock.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisteredUser is one entry of the local registry.
type RegisteredUser struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	UserData     User   `json:"userData"`
}

// Demo account accepted regardless of the registry contents.
const (
	DemoEmail    = "demo@example.com"
	DemoPassword = "password"
)

// DemoUser is the identity behind the demo account.
func DemoUser(now time.Time) User {
	return User{
		ID:        1,
		Username:  "Demo User",
		Email:     DemoEmail,
		CreatedAt: now,
	}
}
