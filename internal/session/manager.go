// Package session keeps the table controllers of authenticated users alive
// between requests.
package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/config"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/straye-as/salesdesk/internal/logger"
	"github.com/straye-as/salesdesk/internal/table"
	"github.com/straye-as/salesdesk/internal/urlstate"
)

// ErrNotFound is returned for unknown, expired or foreign sessions
var ErrNotFound = errors.New("session not found")

// Opener starts a table controller for an entity
type Opener func(entity domain.Entity, creds backend.Credentials, location urlstate.Location, opts table.Options) (table.Table, error)

// Session is one live table owned by a user
type Session struct {
	ID        uuid.UUID
	OwnerID   string
	Entity    domain.Entity
	Table     table.Table
	CreatedAt time.Time

	token    *backend.SessionToken
	lastUsed time.Time
}

// Manager stores sessions in memory
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	open        Opener
	apiKey      backend.APIKey
	idleTimeout time.Duration
	maxPerUser  int
	tableOpts   table.Options
	logger      *zap.Logger
	now         func() time.Time
}

// NewManager creates a session manager. apiKey is sent with every backend
// request next to the owner's bearer token.
func NewManager(open Opener, cfg *config.SessionsConfig, tableOpts table.Options, apiKey string, logger *zap.Logger) *Manager {
	return &Manager{
		sessions:    make(map[uuid.UUID]*Session),
		open:        open,
		apiKey:      backend.APIKey(apiKey),
		idleTimeout: cfg.IdleTimeout(),
		maxPerUser:  cfg.MaxPerUser,
		tableOpts:   tableOpts,
		logger:      logger,
		now:         time.Now,
	}
}

// Create opens a table for ownerID positioned at query. When the owner is at
// the session limit the least recently used session is closed first.
func (m *Manager) Create(ownerID, token string, entity domain.Entity, query string) (*Session, error) {
	id := uuid.New()
	sessToken := backend.NewSessionToken(token)
	creds := backend.Chain{sessToken, m.apiKey}

	opts := m.tableOpts
	log := logger.WithTable(m.logger, string(entity), id.String(), ownerID)
	opts.Logger = log
	opts.OnSelectionChange = func(ids []string) {
		log.Debug("selection changed", zap.Int("selected", len(ids)))
	}

	tbl, err := m.open(entity, creds, urlstate.NewMemoryLocation(query), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}

	now := m.now()
	s := &Session{
		ID:        id,
		OwnerID:   ownerID,
		Entity:    entity,
		Table:     tbl,
		CreatedAt: now,
		token:     sessToken,
		lastUsed:  now,
	}

	m.mu.Lock()
	evicted := m.evictForLocked(ownerID)
	m.sessions[id] = s
	m.mu.Unlock()

	for _, old := range evicted {
		old.Table.Close()
		m.logger.Info("evicted table session",
			zap.String("session_id", old.ID.String()),
			zap.String("user_id", ownerID),
			zap.String("reason", "limit"))
	}
	log.Info("opened table session")
	return s, nil
}

// Get returns the owner's session and refreshes its credentials with token
func (m *Manager) Get(id uuid.UUID, ownerID, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	if token != "" {
		s.token.Set(token)
	}
	s.lastUsed = m.now()
	return s, nil
}

// Delete closes and removes the owner's session
func (m *Manager) Delete(id uuid.UUID, ownerID string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || s.OwnerID != ownerID {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Table.Close()
	return nil
}

// Sweep closes sessions idle for longer than the idle timeout and returns how many were closed
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.lastUsed.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Table.Close()
		m.logger.Info("evicted table session",
			zap.String("session_id", s.ID.String()),
			zap.String("user_id", s.OwnerID),
			zap.String("reason", "idle"))
	}
	return len(expired)
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes every session
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Table.Close()
	}
}

// evictForLocked removes the owner's least recently used sessions until one more fits
func (m *Manager) evictForLocked(ownerID string) []*Session {
	if m.maxPerUser <= 0 {
		return nil
	}
	var owned []*Session
	for _, s := range m.sessions {
		if s.OwnerID == ownerID {
			owned = append(owned, s)
		}
	}
	if len(owned) < m.maxPerUser {
		return nil
	}
	slices.SortFunc(owned, func(a, b *Session) int { return a.lastUsed.Compare(b.lastUsed) })
	evicted := owned[:len(owned)-m.maxPerUser+1]
	for _, s := range evicted {
		delete(m.sessions, s.ID)
	}
	return evicted
}
