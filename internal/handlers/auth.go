package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aka0kuro/hostberry-sub000/internal/gateway"
	"github.com/aka0kuro/hostberry-sub000/internal/models"
	pkghttp "github.com/aka0kuro/hostberry-sub000/pkg/http"
)

// LoginService defines the interface to the security gateway's login gate
type LoginService interface {
	Login(ctx context.Context, username, password, ip string) (*gateway.LoginResult, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  LoginService
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service LoginService, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	ExpiresIn          int    `json:"expires_in"`
	MustChangePassword bool   `json:"must_change_password"`
}

// SessionResponse describes the principal behind the presented token
type SessionResponse struct {
	Username  string     `json:"username"`
	Admin     bool       `json:"admin"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Login handles credential submission and token issuance
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	ip := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Login(r.Context(), req.Username, req.Password, ip)
	if err != nil {
		var authErr *models.AuthenticationError
		switch {
		case errors.As(err, &authErr) && authErr.Reason == models.AuthLocked:
			pkghttp.WriteRateLimited(w, authErr.RetryAfter, "Too many failed login attempts. Please try again later.")
		case errors.As(err, &authErr), errors.Is(err, models.ErrAccountDisabled):
			// One indistinguishable failure for bad password, unknown
			// principal, and disabled account: no enumeration via the API.
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LoginResponse{
		AccessToken:        result.Token,
		TokenType:          result.TokenType,
		ExpiresIn:          result.ExpiresIn,
		MustChangePassword: result.MustChangePassword,
	})
}

// Session returns the principal resolved by the gateway for this request
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	principal := gateway.PrincipalFromContext(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(SessionResponse{
		Username:  principal.Username,
		Admin:     principal.Admin,
		LastLogin: principal.LastLogin,
	})
}
