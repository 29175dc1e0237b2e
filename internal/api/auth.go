package api

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/AaronLay10/TitanMedia/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	// RoleAdmin may also save/load the collection, resync and log in to
	// the platform.
	RoleAdmin Role = "admin"
	// RoleOperator runs the show: switching, sources, outputs, chat.
	RoleOperator Role = "operator"
)

type credentials struct {
	user, pass string
}

func (c credentials) set() bool { return c.user != "" && c.pass != "" }

func (c credentials) match(user, pass string) bool {
	return c.set() && secureCompare(user, c.user) && secureCompare(pass, c.pass)
}

// authConfig holds the basic auth credentials per role.
type authConfig struct {
	admin    credentials
	operator credentials
}

var auth *authConfig

// InitAuth installs the credentials from the loaded secrets. Without admin
// credentials authentication is off and every request is treated as admin.
func InitAuth(sec config.Secrets) {
	auth = &authConfig{
		admin:    credentials{sec.AdminUser, sec.AdminPass},
		operator: credentials{sec.OperatorUser, sec.OperatorPass},
	}
	if !IsAuthEnabled() {
		log.Printf("API authentication disabled: %s/%s not set", config.EnvAdminUser, config.EnvAdminPass)
	}
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && auth.admin.set()
}

// authenticate returns the caller's role, or "" for bad credentials.
func authenticate(r *http.Request) Role {
	if !IsAuthEnabled() {
		return RoleAdmin
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	switch {
	case auth.admin.match(user, pass):
		return RoleAdmin
	case auth.operator.match(user, pass):
		return RoleOperator
	}
	return ""
}

// secureCompare performs constant-time string comparison to prevent timing attacks.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAuth returns 401 Unauthorized with WWW-Authenticate header.
func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Titan Studio"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the specified roles.
func RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole wraps a handler requiring admin OR operator role.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin wraps a handler requiring admin role only.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin)
}
