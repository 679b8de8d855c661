// Package credentials keeps one bcrypt hash per entity key in a flat
// two-column table. An entity with no row is in the bootstrap state: it
// has never set a secret, which callers treat as a first-login signal
// rather than a failure.
package credentials

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"examdesk/internal/tablefile"
)

// Status is the outcome of a secret check.
type Status int

const (
	// StatusMismatch means a hash exists and the candidate does not match.
	StatusMismatch Status = iota
	// StatusMatch means the candidate matches the stored hash.
	StatusMatch
	// StatusUnset means no secret has ever been stored for the key.
	StatusUnset
)

const credentialFields = 2

// Store reads and mutates the credential table. Keys are matched
// exactly; callers normalize before calling.
type Store struct {
	ch   *tablefile.Channel
	path string
	cost int
}

// NewStore returns a store hashing with the given bcrypt cost; a
// non-positive cost selects bcrypt's default.
func NewStore(ch *tablefile.Channel, path string, cost int) *Store {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Store{ch: ch, path: path, cost: cost}
}

// Lookup scans for the key and returns its hash, or ok=false when no
// row matches.
func (s *Store) Lookup(key string) (hash string, ok bool, err error) {
	rows, err := s.ch.Read(s.path)
	if err != nil {
		return "", false, err
	}
	for _, row := range rows {
		if len(row) < credentialFields {
			continue
		}
		if row[0] == key {
			return row[1], true, nil
		}
	}
	return "", false, nil
}

// Verify checks a candidate secret. StatusUnset is returned exactly when
// Lookup finds no row.
func (s *Store) Verify(key, candidate string) (Status, error) {
	hash, ok, err := s.Lookup(key)
	if err != nil {
		return StatusMismatch, err
	}
	if !ok {
		return StatusUnset, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) != nil {
		return StatusMismatch, nil
	}
	return StatusMatch, nil
}

// Upsert derives a hash for the new secret and persists it, overwriting
// an existing row for the key or adding one. The whole table is
// rewritten via Replace so an update can never leave two rows behind.
func (s *Store) Upsert(key, newSecret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newSecret), s.cost)
	if err != nil {
		return fmt.Errorf("derive secret hash: %w", err)
	}

	rows, err := s.ch.Read(s.path)
	if err != nil {
		return err
	}
	replaced := false
	out := make([][]string, 0, len(rows)+1)
	for _, row := range rows {
		if len(row) >= credentialFields && row[0] == key {
			if !replaced {
				out = append(out, []string{key, string(hash)})
				replaced = true
			}
			continue
		}
		out = append(out, row)
	}
	if !replaced {
		out = append(out, []string{key, string(hash)})
	}
	return s.ch.Replace(s.path, out)
}
