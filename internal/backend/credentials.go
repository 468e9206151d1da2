package backend

import (
	"net/http"
	"sync"
)

// Credentials authorize a backend request. They are passed explicitly to every
// call; the client keeps no ambient token.
type Credentials interface {
	Apply(req *http.Request)
}

// BearerToken forwards a caller's access token
type BearerToken string

// Apply sets the Authorization header
func (t BearerToken) Apply(req *http.Request) {
	if t != "" {
		req.Header.Set("Authorization", "Bearer "+string(t))
	}
}

// APIKey identifies this service to the backend
type APIKey string

// Apply sets the x-api-key header
func (k APIKey) Apply(req *http.Request) {
	if k != "" {
		req.Header.Set("x-api-key", string(k))
	}
}

// Chain applies several credentials in order
type Chain []Credentials

// Apply applies every credential
func (c Chain) Apply(req *http.Request) {
	for _, cred := range c {
		if cred != nil {
			cred.Apply(req)
		}
	}
}

// SessionToken is a bearer token that the owner of a long-lived table session
// refreshes on every interaction
type SessionToken struct {
	mu    sync.RWMutex
	token string
}

// NewSessionToken creates a session token holder
func NewSessionToken(token string) *SessionToken {
	return &SessionToken{token: token}
}

// Set replaces the token
func (s *SessionToken) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Apply sets the Authorization header with the current token
func (s *SessionToken) Apply(req *http.Request) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	BearerToken(token).Apply(req)
}
