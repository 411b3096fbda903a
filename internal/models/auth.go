package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the payload carried by issued bearer tokens. The principal
// username rides in the registered Subject claim.
type TokenClaims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}
