// SPDX-License-Identifier: GPL-3.0-or-later

package isavail

import (
	"bufio"
	"bytes"
	"os"
	"strings"
	"sync"
)

// DefaultCookieFile is where the reference client stores the cookie.
const DefaultCookieFile = "/tmp/isavail-cookie.txt"

// SessionStore loads and saves the session cookie.
type SessionStore interface {
	// Load returns the stored cookie or an error if there is none.
	Load() (string, error)

	// Save replaces the stored cookie.
	Save(cookie string) error
}

// FileSessionStore is a [SessionStore] keeping the cookie as the single
// line of a text file.
type FileSessionStore struct {
	// Path is the MANDATORY path of the cookie file.
	Path string
}

var _ SessionStore = &FileSessionStore{}

// NewFileSessionStore returns a [*FileSessionStore] using path.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{Path: path}
}

// Load implements [SessionStore].
func (s *FileSessionStore) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Scan()
	return sessionNormalize(scanner.Text()), nil
}

// Save implements [SessionStore].
func (s *FileSessionStore) Save(cookie string) error {
	return os.WriteFile(s.Path, []byte(cookie), 0o600)
}

// MemorySessionStore is a [SessionStore] keeping the cookie in memory.
//
// The zero value has no cookie.
type MemorySessionStore struct {
	mu     sync.Mutex
	cookie string
}

var _ SessionStore = &MemorySessionStore{}

// NewMemorySessionStore returns a [*MemorySessionStore] holding cookie.
func NewMemorySessionStore(cookie string) *MemorySessionStore {
	return &MemorySessionStore{cookie: cookie}
}

// Load implements [SessionStore].
func (s *MemorySessionStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cookie == "" {
		return "", os.ErrNotExist
	}
	return s.cookie, nil
}

// Save implements [SessionStore].
func (s *MemorySessionStore) Save(cookie string) error {
	s.mu.Lock()
	s.cookie = cookie
	s.mu.Unlock()
	return nil
}

// sessionNormalize strips whitespace and enforces [CookieMaxLength].
func sessionNormalize(cookie string) string {
	cookie = strings.TrimSpace(cookie)
	if len(cookie) > CookieMaxLength {
		cookie = cookie[:CookieMaxLength]
	}
	return cookie
}
