// Package session reads the serialized per-account authentication
// bundles captured by the login tool. The checker only ever reads them.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNoBundle = errors.New("session bundle not found")

// Cookie is one browser cookie from a captured login session
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
}

// Store is a directory of <username>.json cookie bundles
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// List returns the usernames of every stored bundle, sorted
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var usernames []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		usernames = append(usernames, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(usernames)
	return usernames, nil
}

// Load reads the cookie bundle for one account
func (s *Store) Load(username string) ([]Cookie, error) {
	data, err := os.ReadFile(s.path(username))
	if os.IsNotExist(err) {
		return nil, ErrNoBundle
	}
	if err != nil {
		return nil, err
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", username, err)
	}
	return cookies, nil
}

// Exists reports whether a bundle is stored for the account
func (s *Store) Exists(username string) bool {
	_, err := os.Stat(s.path(username))
	return err == nil
}

// Delete removes an account's bundle
func (s *Store) Delete(username string) error {
	err := os.Remove(s.path(username))
	if os.IsNotExist(err) {
		return ErrNoBundle
	}
	return err
}

func (s *Store) path(username string) string {
	return filepath.Join(s.dir, username+".json")
}
