// Package auth verifies bearer tokens and issues local ones.
//
// Two providers sit behind the Verifier interface: JWTVerifier for HS256
// tokens this service signs at login, and FirebaseVerifier for Firebase ID
// tokens. Both yield a Principal; turning that into a stored user is the
// identity package's job.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Principal is the authenticated party behind a request, as the token
// describes it.
type Principal struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Verifier checks a raw bearer token and returns its principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// LocalSubject is the subject given to accounts created through signup.
func LocalSubject(id uuid.UUID) string {
	return "local|" + id.String()
}

// IsLocalSubject reports whether subject was minted by LocalSubject.
func IsLocalSubject(subject string) bool {
	return strings.HasPrefix(subject, "local|")
}

// HashPassword hashes a password with bcrypt's default cost; bcrypt salts
// every hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares in constant time. Any mismatch returns false.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
