package httpapi

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// adminGate protects the operator surface with a bearer token allow-list and
// feeds the audit trail. An empty allow-list disables the surface entirely.
// Denied attempts are audited too.
type adminGate struct {
	tokens []string
	trail  *auditTrail
}

func newAdminGate(tokens []string, trail *auditTrail) *adminGate {
	return &adminGate{tokens: tokens, trail: trail}
}

func (g *adminGate) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	token = strings.TrimSpace(token)
	for _, allowed := range g.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(allowed)) == 1 {
			return true
		}
	}
	return false
}

func (g *adminGate) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(g.tokens) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		action, target := classifyAdminAction(r.URL.Path)
		if !g.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			g.trail.record(auditEvent{
				Time:       time.Now().UTC(),
				Action:     "auth_denied",
				Target:     action,
				Status:     http.StatusUnauthorized,
				RemoteAddr: r.RemoteAddr,
			})
			return
		}

		rec := &auditRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		g.trail.record(auditEvent{
			Time:       time.Now().UTC(),
			Action:     action,
			Target:     target,
			Detail:     rec.detail,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
		})
	}
}

// classifyAdminAction maps an /admin path onto an audit action name and the
// resource it touches.
func classifyAdminAction(path string) (action, target string) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, "/admin"), "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "orders" && parts[2] == "release":
		return "order_release", parts[1]
	case parts[0] == "orders":
		return "order_list", ""
	case parts[0] == "deposits":
		return "deposit_list", ""
	case parts[0] == "adjust":
		return "ledger_adjust", ""
	case parts[0] == "audit":
		return "audit_read", ""
	}
	return "unknown", strings.Join(parts, "/")
}

// auditRecorder captures the response status and lets handlers attach a
// ledger-level description of what the action changed.
type auditRecorder struct {
	http.ResponseWriter
	status int
	detail string
}

func (r *auditRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// auditDetail annotates the audit event for the current admin request.
func auditDetail(w http.ResponseWriter, format string, args ...any) {
	if rec, ok := w.(*auditRecorder); ok {
		rec.detail = fmt.Sprintf(format, args...)
	}
}
