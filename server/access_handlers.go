package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-sso-server/oauth2"
	"github.com/jrsteele09/go-sso-server/risk"
	"github.com/jrsteele09/go-sso-server/sessions"
)

type evaluateAccessRequest struct {
	Resource      string `json:"resource"`
	Action        string `json:"action"`
	BulkOperation bool   `json:"bulk_operation,omitempty"`
}

// EvaluateAccess scores an access attempt by the calling session's user. Only
// the resource, action and bulk flag come from the body. Identity, network,
// device and location come from the connection, the edge headers and the
// verified session; device trust is never asserted by the caller.
func (s *Server) EvaluateAccess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req evaluateAccessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, oauth2.ErrorInvalidRequest, "invalid JSON body", http.StatusBadRequest)
			return
		}

		caller := sessionFromContext(r.Context())
		ac := accessContext(r, caller, req)
		decision, err := s.access.EvaluateAccess(r.Context(), &ac)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, decision)
	}
}

func accessContext(r *http.Request, caller *sessions.VerifyResult, req evaluateAccessRequest) risk.AccessContext {
	ac := risk.AccessContext{
		UserID:        caller.User.ID,
		TenantID:      caller.User.TenantID,
		SessionID:     caller.Session.ID,
		Resource:      req.Resource,
		Action:        req.Action,
		BulkOperation: req.BulkOperation,
		IPAddress:     clientIP(r),
	}

	md := caller.Session.Metadata
	fingerprint := r.Header.Get(headerDeviceID)
	if fingerprint == "" {
		fingerprint = md.DeviceID
	}
	if fingerprint != "" {
		ac.Device = &risk.Device{Fingerprint: fingerprint, UserAgent: r.UserAgent()}
	}

	if country := r.Header.Get(headerCountry); country != "" {
		ac.Location = &risk.Location{Country: country, City: r.Header.Get(headerCity)}
	} else if md.Location != nil {
		ac.Location = &risk.Location{Country: md.Location.Country, City: md.Location.City}
	}
	return ac
}

// Health pings every registered dependency
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		checks := make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			if err := check(r.Context()); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		body := map[string]any{"status": "ok", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		writeJSON(w, status, body)
	}
}
