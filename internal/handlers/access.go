package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aka0kuro/hostberry-sub000/internal/audit"
	"github.com/aka0kuro/hostberry-sub000/internal/gateway"
	"github.com/aka0kuro/hostberry-sub000/internal/security"
	pkghttp "github.com/aka0kuro/hostberry-sub000/pkg/http"
)

// AccessHandler manages the IP allow/deny sets. These endpoints are the only
// writers to the sets; the request path never mutates them.
type AccessHandler struct {
	filter   *security.AccessFilter
	audit    *audit.Log
	ipConfig *pkghttp.IPConfig
}

// NewAccessHandler creates a new AccessHandler
func NewAccessHandler(filter *security.AccessFilter, auditLog *audit.Log, ipConfig *pkghttp.IPConfig) *AccessHandler {
	return &AccessHandler{
		filter:   filter,
		audit:    auditLog,
		ipConfig: ipConfig,
	}
}

// IPSetRequest represents the request body for replacing an IP set
type IPSetRequest struct {
	Addresses []string `json:"addresses" validate:"required,dive,ip"`
}

// IPSetResponse reports the size of the replaced set
type IPSetResponse struct {
	Set   string `json:"set"`
	Count int    `json:"count"`
}

// UpdateBlacklist replaces the deny list
func (h *AccessHandler) UpdateBlacklist(w http.ResponseWriter, r *http.Request) {
	h.updateSet(w, r, "blacklist", h.filter.SetBlacklist)
}

// UpdateWhitelist replaces the allow list
func (h *AccessHandler) UpdateWhitelist(w http.ResponseWriter, r *http.Request) {
	h.updateSet(w, r, "whitelist", h.filter.SetWhitelist)
}

func (h *AccessHandler) updateSet(w http.ResponseWriter, r *http.Request, set string, apply func([]string)) {
	var req IPSetRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	apply(req.Addresses)

	principal := gateway.PrincipalFromContext(r)
	actor := ""
	if principal != nil {
		actor = principal.Username
	}
	h.audit.Record(audit.EventIPSetUpdated, actor, pkghttp.ExtractClientIP(r, h.ipConfig),
		audit.SeverityInfo, map[string]string{"set": set})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(IPSetResponse{Set: set, Count: len(req.Addresses)})
}
