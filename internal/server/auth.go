package server

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-meta/internal/config"
)

// Capabilities checked by the endpoints.
const (
	CapUploadFiles    = "upload_files"
	CapManageOptions  = "manage_options"
	AdminNonceAction  = "media_meta_generator_admin_nonce"
	nonceTick         = 12 * time.Hour
	nonceLength       = 20
	defaultSecretSize = 32
)

// User is an authenticated caller.
type User struct {
	Name         string
	token        string
	capabilities map[string]bool
}

func (u *User) Can(capability string) bool {
	return u != nil && u.capabilities[capability]
}

// Authenticator resolves bearer tokens to users and issues nonces bound to
// a user and an action.
type Authenticator struct {
	secret []byte
	users  []*User
	now    func() time.Time
}

// NewAuthenticator builds an Authenticator from the configured users. An
// empty secret is replaced by a random one, so nonces do not survive a
// restart.
func NewAuthenticator(secret string, users []config.User) (*Authenticator, error) {
	a := &Authenticator{secret: []byte(secret), now: time.Now}
	if secret == "" {
		a.secret = make([]byte, defaultSecretSize)
		if _, err := rand.Read(a.secret); err != nil {
			return nil, fmt.Errorf("could not generate nonce secret: %w", err)
		}
	}
	for _, u := range users {
		caps := make(map[string]bool, len(u.Capabilities))
		for _, c := range u.Capabilities {
			caps[strings.TrimSpace(c)] = true
		}
		a.users = append(a.users, &User{Name: u.Name, token: u.Token, capabilities: caps})
	}
	return a, nil
}

// Lookup returns the user owning token.
func (a *Authenticator) Lookup(token string) (*User, bool) {
	if token == "" {
		return nil, false
	}
	var found *User
	for _, u := range a.users {
		if subtle.ConstantTimeCompare([]byte(u.token), []byte(token)) == 1 {
			found = u
		}
	}
	return found, found != nil
}

func (a *Authenticator) tick() int64 {
	t := a.now().Unix()
	span := int64(nonceTick / time.Second)
	return (t + span - 1) / span
}

func (a *Authenticator) nonceAt(tick int64, action, user string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10) + "|" + action + "|" + user))
	return hex.EncodeToString(mac.Sum(nil))[:nonceLength]
}

// CreateNonce returns a nonce for action and user valid for 12 to 24 hours.
func (a *Authenticator) CreateNonce(action, user string) string {
	return a.nonceAt(a.tick(), action, user)
}

// VerifyNonce accepts nonces from the current or the previous tick.
func (a *Authenticator) VerifyNonce(nonce, action, user string) bool {
	if nonce == "" {
		return false
	}
	tick := a.tick()
	for _, t := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(nonce), []byte(a.nonceAt(t, action, user))) {
			return true
		}
	}
	return false
}

type userKey struct{}

func withUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func userFrom(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}

// extractToken extracts the Bearer token from the Authorization header.
func extractToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireUser rejects requests without a known bearer token.
func (a *Authenticator) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}
		u, ok := a.Lookup(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}
