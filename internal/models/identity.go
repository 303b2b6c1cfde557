package models

import "strings"

// Identity is the authenticated user as reported by the backend.
type Identity struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Username      string   `json:"username"`
	FirstName     string   `json:"firstName,omitempty"`
	LastName      string   `json:"lastName,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	Authenticated bool     `json:"isAuthenticated"`
}

// DisplayName prefers the full name, then the username, then the email.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if full := strings.TrimSpace(i.FirstName + " " + i.LastName); full != "" {
		return full
	}
	if i.Username != "" {
		return i.Username
	}
	return i.Email
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Email     string   `json:"email"`
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Roles     []string `json:"roles"`
	IsActive  bool     `json:"isActive"`
	LastLogin string   `json:"lastLogin,omitempty"`
}
