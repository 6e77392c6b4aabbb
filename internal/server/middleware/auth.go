package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"rewards-engine/internal/common"
)

// RequireAdmin guards admin routes behind a bearer token checked against
// an Argon2id hash. Only the hash lives in configuration.
func RequireAdmin(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || !verifyArgon2id(token, tokenHash) {
				common.WriteError(w, http.StatusUnauthorized, common.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}

// verifyArgon2id checks a token against an Argon2id hash.
// Hash format: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(token, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Malformed Argon2id hash in configuration")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Failed to parse Argon2id parameters")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Failed to decode Argon2id salt")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Failed to decode Argon2id hash")
		return false
	}

	computedHash := argon2.IDKey([]byte(token), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Constant-time comparison.
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}
