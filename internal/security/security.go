// internal/security/security.go
package security

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
	"sitecheckout/internal/logger"
)

// ErrIncorrectPassword aborts a gated action.
var ErrIncorrectPassword = errors.New("incorrect password")

// Gate guards the stock load/download actions. The password only keeps site staff from
// pressing the buttons by accident; it is not an access control boundary.
type Gate struct {
	hash []byte
}

// NewGate hashes the configured password once at startup.
func NewGate(password string) (*Gate, error) {
	if password == "" {
		return nil, fmt.Errorf("gate password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash gate password: %w", err)
	}
	return &Gate{hash: hash}, nil
}

// Check compares an entered password against the configured one.
func (g *Gate) Check(password string) error {
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(password)); err != nil {
		logger.LogWarn("Stock action refused: incorrect password")
		return ErrIncorrectPassword
	}
	return nil
}

// AddCORSHeaders adds CORS headers and handles OPTIONS requests globally.
func AddCORSHeaders(allowedOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Session-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
