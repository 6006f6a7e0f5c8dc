// Package auth resolves the caller's username from the
// `x-forwarded-email` header set by a trusted reverse proxy, or the local
// OS user when auth is disabled, filtered through a fixed deny-list of
// system accounts. There is no pack library modeling this header
// convention plus deny-list; it is deliberately small and stdlib-only.
package auth

import (
	"net/http"
	"os/user"
	"strings"

	"github.com/webitel/im-thread-gateway/internal/apperr"
)

const ForwardedEmailHeader = "x-forwarded-email"

// deniedAccounts is the fixed set of system accounts that may never own a thread.
var deniedAccounts = map[string]struct{}{
	"root": {}, "admin": {}, "administrator": {}, "system": {}, "daemon": {},
	"nobody": {}, "node": {}, "app": {}, "service": {}, "docker": {},
	"www-data": {}, "nginx": {}, "apache": {}, "ansible": {},
}

// Disabled is true when DISABLE_AUTH makes Resolve fall back to the
// process's OS user instead of requiring the forwarded-email header. It is
// package-level config set once at startup by internal/config.
var Disabled bool

// Resolve extracts and validates the caller's username from r.
func Resolve(r *http.Request) (string, error) {
	username := strings.TrimSpace(r.Header.Get(ForwardedEmailHeader))
	if username == "" {
		if !Disabled {
			return "", apperr.New(apperr.KindUnauthenticated, "missing x-forwarded-email header")
		}
		u, err := user.Current()
		if err != nil {
			return "", apperr.Wrap(apperr.KindUnauthenticated, "resolve local OS user", err)
		}
		username = u.Username
	}
	if isDenied(username) {
		return "", apperr.New(apperr.KindForbidden, "system account may not own threads")
	}
	return username, nil
}

func isDenied(username string) bool {
	_, denied := deniedAccounts[strings.ToLower(username)]
	return denied
}
