package models

import (
	"time"
)

// Principal is the identity a request acts as. Credential records are owned
// by the store; this layer only verifies them and updates LastLogin.
type Principal struct {
	Username     string
	PasswordHash string
	Active       bool
	Admin        bool
	LastLogin    *time.Time
}
