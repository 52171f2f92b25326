// Package identity persists the logged-in user's record, the only durable
// client-side state. It is read once at startup and rewritten only by the
// login flow.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// User is the stored identity record.
type User struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Store reads and writes the identity record at a fixed path.
type Store struct {
	path string
}

// DefaultPath returns the per-user location of the identity record.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "insightloop", "user.json"), nil
}

// NewStore creates a store over the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the stored identity. A missing file is not an error; it returns
// (nil, nil) so callers fall through to the login flow.
func (s *Store) Load() (*User, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read identity: %w", err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parse identity: %w", err)
	}
	if user.UserID == "" {
		return nil, fmt.Errorf("identity record has no user id")
	}
	return &user, nil
}

// Save writes the identity record, creating the directory if needed.
func (s *Store) Save(user *User) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

// Clear removes the stored identity, if any.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove identity: %w", err)
	}
	return nil
}
