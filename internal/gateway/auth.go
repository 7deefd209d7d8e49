package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authorizer gates inbound HTTP requests on a shared bearer secret.
// An empty secret means open mode: every request is accepted.
type Authorizer struct {
	secret string
}

// NewAuthorizer creates an Authorizer for the given secret.
func NewAuthorizer(secret string) *Authorizer {
	return &Authorizer{secret: secret}
}

// Allow reports whether the request carries a valid bearer token.
func (a *Authorizer) Allow(r *http.Request) bool {
	if a.secret == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.secret)) == 1
}
