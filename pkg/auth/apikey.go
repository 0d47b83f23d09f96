package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPrefix starts every generated key
const KeyPrefix = "ndt_"

// APIKeys accepts a fixed set of keys. Only digests are kept.
type APIKeys struct {
	entries []keyEntry
}

type keyEntry struct {
	id     string
	digest [sha256.Size]byte
}

// NewAPIKeys builds a key set. An entry of the form id:key names the
// principal; a bare key is named key-N after its position.
func NewAPIKeys(keys ...string) (*APIKeys, error) {
	a := &APIKeys{}
	for i, k := range keys {
		id, key, ok := strings.Cut(k, ":")
		if !ok {
			id, key = fmt.Sprintf("key-%d", i+1), k
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("api key %d is empty", i+1)
		}
		a.entries = append(a.entries, keyEntry{id: strings.TrimSpace(id), digest: sha256.Sum256([]byte(key))})
	}
	return a, nil
}

// Len returns the number of accepted keys
func (a *APIKeys) Len() int {
	return len(a.entries)
}

// Authenticate implements Authenticator. Every entry is compared so the
// time taken does not depend on which key matched.
func (a *APIKeys) Authenticate(ctx context.Context, credential string) (*Principal, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}
	digest := sha256.Sum256([]byte(credential))

	var match *Principal
	for _, e := range a.entries {
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 && match == nil {
			match = &Principal{ID: e.id}
		}
	}
	if match == nil {
		return nil, ErrInvalidCredential
	}
	return match, nil
}

// GenerateKey returns a new random key
func GenerateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}
