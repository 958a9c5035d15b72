package dto

import "time"

// LoginRequest payload for POST /userLogin.
type LoginRequest struct {
	Email    string `json:"emailValue"`
	Password string `json:"pswd"`
}

// RegisterRequest payload for POST /userRegistracija. Password is optional;
// a temporary one is generated when omitted.
type RegisterRequest struct {
	Email    string `json:"emailValue"`
	Password string `json:"pswd"`
}

// UserSummary is the public view of an account.
type UserSummary struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserSummary `json:"user"`
}

// RegisterResponse is returned on successful registration.
type RegisterResponse struct {
	Success           bool        `json:"success"`
	Message           string      `json:"message"`
	User              UserSummary `json:"user"`
	TemporaryPassword string      `json:"temporaryPassword,omitempty"`
}

// ProfileResponse is returned by GET /userInfo.
type ProfileResponse struct {
	Success bool    `json:"success"`
	User    Profile `json:"user"`
}

// Profile combines the caller's identity with their avatar URL.
type Profile struct {
	Gravatar string `json:"gravatar"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
