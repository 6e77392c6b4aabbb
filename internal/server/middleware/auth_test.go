package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
)

// hashToken produces the same encoded format the generate_hash script
// emits, with small parameters to keep the test fast.
func hashToken(t *testing.T, token string) string {
	t.Helper()

	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	var (
		memory      uint32 = 1024
		iterations  uint32 = 1
		parallelism uint8  = 1
	)
	hash := argon2.IDKey([]byte(token), salt, iterations, memory, parallelism, 32)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func adminHandler(tokenHash string) http.Handler {
	return RequireAdmin(tokenHash)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRequireAdmin_ValidToken(t *testing.T) {
	handler := adminHandler(hashToken(t, "secret-token"))

	req := httptest.NewRequest(http.MethodPost, "/v1/analysis/run", nil)
	req.Header.Set("Authorization", "Bearer secret-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin_RejectsBadToken(t *testing.T) {
	handler := adminHandler(hashToken(t, "secret-token"))

	req := httptest.NewRequest(http.MethodPost, "/v1/analysis/run", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin_RejectsMissingHeader(t *testing.T) {
	handler := adminHandler(hashToken(t, "secret-token"))

	req := httptest.NewRequest(http.MethodPost, "/v1/analysis/run", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyArgon2id_MalformedHash(t *testing.T) {
	assert.False(t, verifyArgon2id("token", "not-a-hash"))
	assert.False(t, verifyArgon2id("token", "$argon2id$v=19$garbage"))
}
