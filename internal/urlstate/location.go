package urlstate

import (
	"strings"
	"sync"
)

// Location holds the query string of the current navigation entry.
// Replace swaps the entry's query in place; it never pushes a new history entry.
type Location interface {
	Query() string
	Replace(query string)
}

// MemoryLocation is an in-process Location
type MemoryLocation struct {
	mu           sync.Mutex
	query        string
	replacements int
}

// NewMemoryLocation creates a location positioned at query
func NewMemoryLocation(query string) *MemoryLocation {
	return &MemoryLocation{query: strings.TrimPrefix(query, "?")}
}

// Query returns the current query string without the leading "?"
func (l *MemoryLocation) Query() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

// Replace replaces the current entry's query
func (l *MemoryLocation) Replace(query string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query = strings.TrimPrefix(query, "?")
	l.replacements++
}

// Replacements reports how many times the entry was replaced
func (l *MemoryLocation) Replacements() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replacements
}
