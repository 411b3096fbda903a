// Package gateway orchestrates the security pipeline every inbound request
// passes through, in fixed order: access filter, rate limiter, then the
// route-specific check. Every rejection is recorded in the audit trail
// before the response is written.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aka0kuro/hostberry-sub000/internal/audit"
	"github.com/aka0kuro/hostberry-sub000/internal/auth"
	"github.com/aka0kuro/hostberry-sub000/internal/models"
	"github.com/aka0kuro/hostberry-sub000/internal/security"
	pkghttp "github.com/aka0kuro/hostberry-sub000/pkg/http"
	pkglogger "github.com/aka0kuro/hostberry-sub000/pkg/logger"
)

// contextKey is a custom type for context keys
type contextKey string

// principalContextKey is the key for storing the resolved principal in context
const principalContextKey contextKey = "principal"

// Gateway wires the security components into one pipeline consumed by every
// route before its own logic runs.
type Gateway struct {
	filter       *security.AccessFilter
	limiter      *security.RateLimiter
	guard        *security.LoginGuard
	tokens       *auth.TokenService
	store        security.PrincipalStore
	audit        *audit.Log
	logger       *slog.Logger
	ipConfig     *pkghttp.IPConfig
	defaultAdmin string
}

// New creates a Gateway. defaultAdmin names the well-known administrative
// account whose logins must be flagged for a password change.
func New(
	filter *security.AccessFilter,
	limiter *security.RateLimiter,
	guard *security.LoginGuard,
	tokens *auth.TokenService,
	store security.PrincipalStore,
	auditLog *audit.Log,
	logger *slog.Logger,
	ipConfig *pkghttp.IPConfig,
	defaultAdmin string,
) *Gateway {
	return &Gateway{
		filter:       filter,
		limiter:      limiter,
		guard:        guard,
		tokens:       tokens,
		store:        store,
		audit:        auditLog,
		logger:       logger,
		ipConfig:     ipConfig,
		defaultAdmin: defaultAdmin,
	}
}

// ClientIP resolves the caller's address for filtering and throttling.
func (g *Gateway) ClientIP(r *http.Request) string {
	return pkghttp.ExtractClientIP(r, g.ipConfig)
}

// Screen applies the first two gates to every request: blacklist/whitelist
// enforcement, then the sliding-window throttle. A blacklisted IP is denied
// before rate limiting or any authentication logic executes.
func (g *Gateway) Screen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := g.ClientIP(r)

		if err := g.filter.Check(ip); err != nil {
			var denied *models.AccessDeniedError
			reason := ""
			if errors.As(err, &denied) {
				reason = string(denied.Reason)
			}
			g.audit.Record(audit.EventAccessDenied, "", ip, audit.SeverityWarning,
				map[string]string{"reason": reason})
			pkghttp.WriteForbidden(w, "Access denied")
			return
		}

		if ok, retryAfter := g.limiter.Admit(ip); !ok {
			g.audit.Record(audit.EventRateLimited, "", ip, audit.SeverityWarning,
				map[string]string{"retry_after": retryAfter.String()})
			pkghttp.WriteRateLimited(w, retryAfter, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token              string
	TokenType          string
	ExpiresIn          int
	MustChangePassword bool
	Principal          *models.Principal
}

// Login runs the credential gate (lockout check, password verification) and
// issues a bearer token on success. The outcome of the gate is always
// audited before returning.
func (g *Gateway) Login(ctx context.Context, username, password, ip string) (*LoginResult, error) {
	principal, err := g.guard.Authenticate(ctx, username, password)
	if err != nil {
		var authErr *models.AuthenticationError
		if errors.As(err, &authErr) {
			switch authErr.Reason {
			case models.AuthLocked:
				g.audit.Record(audit.EventLoginLocked, username, ip, audit.SeverityWarning,
					map[string]string{"retry_after": authErr.RetryAfter.String()})
			default:
				g.audit.Record(audit.EventLoginFailed, username, ip, audit.SeverityWarning,
					map[string]string{"reason": string(authErr.Reason)})
			}
		} else {
			g.logger.Error("login pipeline error",
				slog.String("principal", pkglogger.MaskUsername(username)),
				slog.Any("error", err))
		}
		return nil, err
	}

	if !principal.Active {
		g.audit.Record(audit.EventPrincipalDisabled, username, ip, audit.SeverityWarning, nil)
		return nil, models.ErrAccountDisabled
	}

	token, err := g.tokens.Issue(principal.Username, principal.Admin)
	if err != nil {
		g.logger.Error("failed to issue token",
			slog.String("principal", pkglogger.MaskUsername(username)),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	g.audit.Record(audit.EventLoginSuccess, username, ip, audit.SeverityInfo, nil)

	return &LoginResult{
		Token:              token,
		TokenType:          "Bearer",
		ExpiresIn:          int(g.tokens.TTL().Seconds()),
		MustChangePassword: principal.Username == g.defaultAdmin,
		Principal:          principal,
	}, nil
}

// Resolve is the single "resolve principal or reject" call behind every
// authenticated route: verify the bearer token, then reject principals that
// have been disabled since the token was issued.
func (g *Gateway) Resolve(ctx context.Context, bearer, ip string) (*models.Principal, error) {
	claims, err := g.tokens.Verify(bearer)
	if err != nil {
		var tokenErr *models.TokenInvalidError
		reason := ""
		if errors.As(err, &tokenErr) {
			reason = string(tokenErr.Reason)
		}
		g.audit.Record(audit.EventTokenRejected, "", ip, audit.SeverityWarning,
			map[string]string{"reason": reason})
		return nil, err
	}

	principal, err := g.store.GetByUsername(ctx, claims.Subject)
	if err != nil {
		g.audit.Record(audit.EventTokenRejected, claims.Subject, ip, audit.SeverityWarning,
			map[string]string{"reason": "unknown_principal"})
		return nil, models.ErrUnauthorized
	}

	if !principal.Active {
		g.audit.Record(audit.EventPrincipalDisabled, claims.Subject, ip, audit.SeverityWarning, nil)
		return nil, models.ErrAccountDisabled
	}

	return principal, nil
}

// Authenticate guards protected routes: it extracts the bearer token from
// the Authorization header, resolves it through Resolve, and injects the
// principal into the request context.
func (g *Gateway) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkghttp.WriteUnauthorized(w, "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			pkghttp.WriteUnauthorized(w, "Invalid authorization header format")
			return
		}

		principal, err := g.Resolve(r.Context(), parts[1], g.ClientIP(r))
		if err != nil {
			var tokenErr *models.TokenInvalidError
			if errors.As(err, &tokenErr) && tokenErr.Reason == models.TokenExpired {
				pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "Token has expired")
				return
			}
			pkghttp.WriteUnauthorized(w, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin enforces the admin flag. Must run after Authenticate.
func (g *Gateway) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := PrincipalFromContext(r)
		if principal == nil {
			pkghttp.WriteUnauthorized(w, "Unauthorized")
			return
		}
		if !principal.Admin {
			pkghttp.WriteForbidden(w, "Administrative access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromContext extracts the resolved principal from the request
// context, or nil when the request did not pass Authenticate.
func PrincipalFromContext(r *http.Request) *models.Principal {
	principal, ok := r.Context().Value(principalContextKey).(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}

// WithPrincipal injects a principal into ctx. Intended for handler tests.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
