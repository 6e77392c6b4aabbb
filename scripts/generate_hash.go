// +build ignore

// generate_hash.go generates an Argon2id hash for the admin token.
// Run: go run scripts/generate_hash.go your_token
//
// Put the result into .env as ADMIN_TOKEN_HASH.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/generate_hash.go <token>")
		os.Exit(1)
	}

	token := os.Args[1]

	// Random 16-byte salt.
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		fmt.Printf("Failed to generate salt: %v\n", err)
		os.Exit(1)
	}

	// Argon2id parameters.
	var (
		memory      uint32 = 65536 // 64 MB
		iterations  uint32 = 3
		parallelism uint8  = 2
		keyLength   uint32 = 32
	)

	hash := argon2.IDKey([]byte(token), salt, iterations, memory, parallelism, keyLength)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	result := fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism, encodedSalt, encodedHash)

	fmt.Println("Token hash (put into .env as ADMIN_TOKEN_HASH):")
	fmt.Println(result)
}
