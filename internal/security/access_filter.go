package security

import (
	"sync"

	"github.com/aka0kuro/hostberry-sub000/internal/models"
)

// AccessFilterConfig holds the initial IP allow/deny sets.
type AccessFilterConfig struct {
	Blacklist        []string
	Whitelist        []string
	WhitelistEnabled bool
}

// AccessFilter enforces IP deny- and allow-lists. The blacklist is always
// consulted; whitelist membership is required only when whitelist mode is
// enabled. The sets change only through explicit administrative action,
// never on the hot request path, so reads take a shared lock.
type AccessFilter struct {
	mu               sync.RWMutex
	blacklist        map[string]struct{}
	whitelist        map[string]struct{}
	whitelistEnabled bool
}

// NewAccessFilter creates a new AccessFilter
func NewAccessFilter(config AccessFilterConfig) *AccessFilter {
	return &AccessFilter{
		blacklist:        toSet(config.Blacklist),
		whitelist:        toSet(config.Whitelist),
		whitelistEnabled: config.WhitelistEnabled,
	}
}

// Check returns nil when ip may proceed, or a *models.AccessDeniedError
// naming the failed list.
func (f *AccessFilter) Check(ip string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, denied := f.blacklist[ip]; denied {
		return &models.AccessDeniedError{Reason: models.DenyBlacklisted, IP: ip}
	}
	if f.whitelistEnabled {
		if _, allowed := f.whitelist[ip]; !allowed {
			return &models.AccessDeniedError{Reason: models.DenyNotWhitelisted, IP: ip}
		}
	}
	return nil
}

// SetBlacklist replaces the deny list.
func (f *AccessFilter) SetBlacklist(ips []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist = toSet(ips)
}

// SetWhitelist replaces the allow list.
func (f *AccessFilter) SetWhitelist(ips []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.whitelist = toSet(ips)
}

// Snapshot returns copies of the current sets for administrative reads.
func (f *AccessFilter) Snapshot() (blacklist, whitelist []string, whitelistEnabled bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ip := range f.blacklist {
		blacklist = append(blacklist, ip)
	}
	for ip := range f.whitelist {
		whitelist = append(whitelist, ip)
	}
	return blacklist, whitelist, f.whitelistEnabled
}

func toSet(ips []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		if ip != "" {
			set[ip] = struct{}{}
		}
	}
	return set
}
