package users

import (
	"strings"
	"time"
)

// User is the profile returned by the DeepSight API for the signed in account.
type User struct {
	ID         int       `json:"id,omitempty"`          // Unique identifier for the user
	Email      string    `json:"email,omitempty"`       // User's email address
	Username   string    `json:"username,omitempty"`    // Unique username
	FirstName  string    `json:"first_name,omitempty"`  // First name of the user
	LastName   string    `json:"last_name,omitempty"`   // Last name of the user
	DateJoined time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
}

// DisplayName returns "First Last", falling back to the username.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

type Theme string

const (
	ThemeLight         Theme = "light"
	ThemeDark          Theme = "dark"
	ThemeSystemDefault Theme = "systemdefault"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystemDefault:
		return true
	}
	return false
}

// Settings are the per-user preferences stored by the API.
type Settings struct {
	Theme Theme `json:"theme"`
}

// Registration is the signup payload. ConfirmPassword is only checked
// client side and never sent.
type Registration struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
