package dto

import "time"

// TokenRes carries a freshly issued session token.
type TokenRes struct {
	Token string `json:"token"`
}

// ErrorRes is the body of every failed request.
type ErrorRes struct {
	Error string `json:"error"`
}

// SessionRes reports whether the presented token is an active session.
type SessionRes struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"userId,omitempty"`
}

// MeRes describes the authenticated user.
type MeRes struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmptyRes is the `{}` body returned by sign-out endpoints.
type EmptyRes struct{}
