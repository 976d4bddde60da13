// Package access decides which identities hold administrator privilege.
package access

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// AllowList is a case-insensitive set of administrator emails. It is safe for
// concurrent use and may be replaced at runtime.
type AllowList struct {
	mu     sync.RWMutex
	emails map[string]struct{}
}

// NewAllowList builds an allow-list from the provided emails. Blank entries
// are ignored.
func NewAllowList(emails ...string) *AllowList {
	l := &AllowList{}
	l.Replace(emails)
	return l
}

// IsAdmin reports whether email belongs to the list.
func (l *AllowList) IsAdmin(email string) bool {
	if l == nil {
		return false
	}
	key := normalizeEmail(email)
	if key == "" {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.emails[key]
	return ok
}

// Replace swaps the whole set atomically.
func (l *AllowList) Replace(emails []string) {
	next := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		if key := normalizeEmail(email); key != "" {
			next[key] = struct{}{}
		}
	}
	l.mu.Lock()
	l.emails = next
	l.mu.Unlock()
}

// Emails returns the sorted members.
func (l *AllowList) Emails() []string {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	out := make([]string, 0, len(l.emails))
	for email := range l.emails {
		out = append(out, email)
	}
	l.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Len returns the number of members.
func (l *AllowList) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.emails)
}

type allowListFile struct {
	Admins []string `yaml:"admins"`
}

// ReadFile parses a YAML document of the form:
//
//	admins:
//	  - admin@ece.com
func ReadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allow-list %s: %w", path, err)
	}
	var doc allowListFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse allow-list %s: %w", path, err)
	}
	return doc.Admins, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
