// Package oauth wraps the external identity provider behind a small
// interface so identity resolution can be tested with a fake provider.
package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Profile is the provider-issued identity returned by the code exchange.
// Subject is the provider's stable identifier and is the only field identity
// resolution keys on; the display name is used solely to derive a username
// for new accounts.
type Profile struct {
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// Provider is the OAuth dance as seen by the rest of the application:
// build the authorization redirect, then turn a callback code into a
// profile. Exchange must honor ctx cancellation so an abandoned callback
// aborts the in-flight provider calls.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// HashSubject derives the stored external ID from a provider subject. The
// raw subject never touches the database.
func HashSubject(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:])
}
