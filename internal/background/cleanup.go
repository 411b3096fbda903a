package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/aka0kuro/hostberry-sub000/internal/security"
)

// CleanupManager periodically garbage-collects empty rate windows and
// expired lockout records, keeping memory bounded on long uptimes. It runs
// independently of the request path.
type CleanupManager struct {
	limiter  *security.RateLimiter
	guard    *security.LoginGuard
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	limiter *security.RateLimiter,
	guard *security.LoginGuard,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		limiter:  limiter,
		guard:    guard,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.runSweep()
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runSweep() {
	windows := cm.limiter.Sweep()
	lockouts := cm.guard.SweepExpired()

	if windows > 0 || lockouts > 0 {
		cm.logger.Info("security state sweep completed",
			slog.Int("rate_windows_removed", windows),
			slog.Int("lockouts_expired", lockouts))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
