// Package apikey provides an API key authenticator that validates
// bearer tokens against a static key store using SHA-256 hashing
// and constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/rhuss/ormodeler/pkg/auth"
)

// Entry is the configuration format for one API key.
type Entry struct {
	Key         string
	Subject     string
	ServiceTier string
}

type hashedKey struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates bearer tokens against a static key store.
type Authenticator struct {
	keys []hashedKey
}

// New creates an API key authenticator. Keys are hashed immediately;
// plaintext keys are not stored. An entry without a subject is identified
// by its position ("key-1", "key-2", ...) so rate limits stay per key.
func New(entries []Entry) *Authenticator {
	a := &Authenticator{}
	for i, e := range entries {
		id := auth.Identity{Subject: e.Subject, ServiceTier: e.ServiceTier}
		if id.Subject == "" {
			id.Subject = "key-" + strconv.Itoa(i+1)
		}
		if id.ServiceTier == "" {
			id.ServiceTier = "default"
		}
		a.keys = append(a.keys, hashedKey{hash: sha256.Sum256([]byte(e.Key)), identity: id})
	}
	return a
}

// Authenticate returns Yes for a known bearer token, No for an unknown or
// empty one, and Abstain when the request carries no bearer token.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	token, ok := auth.BearerToken(r)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))

	// Compare against every key so timing does not reveal the match index.
	match := -1
	for i := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], a.keys[i].hash[:]) == 1 {
			match = i
		}
	}
	if match < 0 {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	id := a.keys[match].identity
	return auth.AuthResult{Decision: auth.Yes, Identity: &id}
}
