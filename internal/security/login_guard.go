package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aka0kuro/hostberry-sub000/internal/models"
	pkgauth "github.com/aka0kuro/hostberry-sub000/pkg/auth"
	pkglogger "github.com/aka0kuro/hostberry-sub000/pkg/logger"
)

// PrincipalStore defines the narrow interface to the external credential
// store. Implementations must return models.ErrNotFound for unknown names.
type PrincipalStore interface {
	GetByUsername(ctx context.Context, username string) (*models.Principal, error)
	TouchLastLogin(ctx context.Context, username string, at time.Time) error
}

// LoginGuardConfig holds the brute-force lockout policy.
type LoginGuardConfig struct {
	MaxAttempts   int
	BlockDuration time.Duration
}

// attemptRecord tracks consecutive failures for one principal. blockedUntil
// is the zero time while no lockout is pending.
type attemptRecord struct {
	count        int
	blockedUntil time.Time
}

// LoginGuard counts failed attempts per principal and enforces progressive
// lockout: Clear -> Warned (count below threshold) -> Locked (blocked_until
// set) -> Clear once the window passes. State lives only in memory and is
// intentionally lost on restart.
type LoginGuard struct {
	store  PrincipalStore
	config LoginGuardConfig
	logger *slog.Logger

	mu       sync.Mutex
	attempts map[string]*attemptRecord
	now      func() time.Time
}

// NewLoginGuard creates a new LoginGuard
func NewLoginGuard(store PrincipalStore, config LoginGuardConfig, logger *slog.Logger) *LoginGuard {
	return &LoginGuard{
		store:    store,
		config:   config,
		logger:   logger,
		attempts: make(map[string]*attemptRecord),
		now:      time.Now,
	}
}

// Authenticate verifies username/password under the lockout policy.
// Failures come back as *models.AuthenticationError carrying the reason;
// a pending lockout wins over everything, including a correct password.
func (g *LoginGuard) Authenticate(ctx context.Context, username, password string) (*models.Principal, error) {
	now := g.now()

	if remaining, locked := g.checkLockout(username, now); locked {
		g.logger.Warn("login rejected: principal locked",
			slog.String("principal", pkglogger.MaskUsername(username)),
			slog.Duration("remaining", remaining))
		return nil, &models.AuthenticationError{Reason: models.AuthLocked, RetryAfter: remaining}
	}

	principal, err := g.store.GetByUsername(ctx, username)
	if err != nil {
		if err == models.ErrNotFound {
			return nil, &models.AuthenticationError{Reason: models.AuthNotFound}
		}
		return nil, err
	}

	if !pkgauth.VerifyPassword(password, principal.PasswordHash) {
		if blockFor, locked := g.recordFailure(username, now); locked {
			g.logger.Warn("principal locked out",
				slog.String("principal", pkglogger.MaskUsername(username)),
				slog.Int("max_attempts", g.config.MaxAttempts),
				slog.Duration("block_duration", blockFor))
			return nil, &models.AuthenticationError{Reason: models.AuthLocked, RetryAfter: blockFor}
		}
		return nil, &models.AuthenticationError{Reason: models.AuthIncorrectPassword}
	}

	g.reset(username)

	if err := g.store.TouchLastLogin(ctx, username, now); err != nil {
		// A stale last_login must not fail an otherwise valid login.
		g.logger.Error("failed to update last login",
			slog.String("principal", pkglogger.MaskUsername(username)),
			slog.Any("error", err))
	}

	return principal, nil
}

// checkLockout returns the remaining block time if a lockout is pending.
// An expired lockout record is deleted here, resetting the count to zero.
func (g *LoginGuard) checkLockout(username string, now time.Time) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.attempts[username]
	if !ok || rec.blockedUntil.IsZero() {
		return 0, false
	}
	if now.Before(rec.blockedUntil) {
		return rec.blockedUntil.Sub(now), true
	}
	delete(g.attempts, username)
	return 0, false
}

// recordFailure increments the counter and starts a lockout window once the
// threshold is reached.
func (g *LoginGuard) recordFailure(username string, now time.Time) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.attempts[username]
	if !ok {
		rec = &attemptRecord{}
		g.attempts[username] = rec
	}
	rec.count++
	if rec.count >= g.config.MaxAttempts {
		rec.blockedUntil = now.Add(g.config.BlockDuration)
		return g.config.BlockDuration, true
	}
	return 0, false
}

// reset clears the attempt record after a successful authentication.
func (g *LoginGuard) reset(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attempts, username)
}

// SweepExpired removes records whose lockout window has passed. Warned
// records without a lockout stay until the principal succeeds. Returns the
// number of records removed.
func (g *LoginGuard) SweepExpired() int {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for username, rec := range g.attempts {
		if !rec.blockedUntil.IsZero() && !now.Before(rec.blockedUntil) {
			delete(g.attempts, username)
			removed++
		}
	}
	return removed
}
